// Command s3simd is the simulation driver: it loads a model document,
// builds the topology it describes, and advances the scheduler to
// completion (spec.md §4.1's build_model/init_model/advance contract).
// DML parsing is out of scope (spec.md §1's Non-goals); the model
// document here is plain JSON in the shape config.Model decodes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"golang.org/x/time/rate"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/config"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/internal/alog"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/nic"
	"github.com/s3sim/core/scheduler"
	"github.com/s3sim/core/topology"
)

func main() {
	configPath := flag.String("config", "", "path to the model document (JSON)")
	progressInterval := flag.Duration("progress-interval", time.Second, "minimum real-time gap between progress log lines")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	if *configPath == "" {
		log.Fatal("s3simd: -config is required")
	}
	raw, err := readModelDocument(*configPath)
	if err != nil {
		log.WithError(err).Fatal("s3simd: read model document")
	}

	model, err := config.Load(raw)
	if err != nil {
		log.WithError(err).Fatal("s3simd: ConfigError")
	}

	logger := alog.New(log.Log)
	exitCode := run(model, logger, *progressInterval)
	os.Exit(exitCode)
}

// readModelDocument reads and JSON-decodes the model document into the
// map[string]any shape config.Load expects, mirroring what a DML front
// end would hand the core (spec.md §6).
func readModelDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// run builds the model described by m, advances it to completion, and
// returns the process exit code (spec.md §6: 0 on success, non-zero on
// a fatal configuration or scheduling error).
func run(m *config.Model, logger ltime.Logger, progressInterval time.Duration) int {
	scale, err := m.Scale()
	if err != nil {
		logger.Warnf("s3simd: %s", err.Error())
		return 1
	}

	e, err := entity.NewEngine(int(m.TotalTimeline), logger)
	if err != nil {
		logger.Warnf("s3simd: %s", err.Error())
		return 1
	}
	e.Sched.SetErrorHandler(func(err error) {
		logger.Warnf("s3simd: scheduler error: %s", err.Error())
	})

	if err := buildTopology(e, m, scale); err != nil {
		logger.Warnf("s3simd: build_model: %s", err.Error())
		return 1
	}

	if err := e.BuildModel(); err != nil {
		logger.Warnf("s3simd: build_model: %s", err.Error())
		return 1
	}
	e.InitModel()
	defer e.Close()

	runTimeTicks, err := m.RunTimeTicks()
	if err != nil {
		logger.Warnf("s3simd: %s", err.Error())
		return 1
	}

	limiter := rate.NewLimiter(rate.Every(progressInterval), 1)
	reached, err := advanceWithProgress(context.Background(), e, runTimeTicks, limiter, logger)
	if err != nil {
		logger.Warnf("s3simd: advance: %s", err.Error())
		return 1
	}
	logger.Infof("s3simd: reached simulated time %d (scale %d)", reached, scale)
	return 0
}

// advanceWithProgress drives the engine in bounded slices so a
// rate-limited progress line can be emitted between them, rather than
// blocking for the whole run inside a single Advance call.
func advanceWithProgress(ctx context.Context, e *entity.Engine, stopBefore ltime.Time, limiter *rate.Limiter, logger ltime.Logger) (ltime.Time, error) {
	const sliceTicks = ltime.Time(1_000_000) // 1 second at microsecond scale
	var clock ltime.Time
	for clock < stopBefore {
		next := clock + sliceTicks
		if next > stopBefore {
			next = stopBefore
		}
		reached, err := e.Sched.Advance(scheduler.StopBeforeTime, next, scheduler.StopOnAll, nil)
		if err != nil {
			return reached, err
		}
		clock = reached
		if limiter.Allow() {
			logger.Infof("s3simd: progress %d/%d ticks", clock, stopBefore)
		}
	}
	return clock, nil
}

// redConfigFromInterface fills in an nic.REDConfig from an interface's
// config document, applying spec.md §4.2's defaults for any threshold
// left at zero (a RED queue with qmax=0 would drop everything).
func redConfigFromInterface(ic config.InterfaceConfig, scale ltime.Scale) nic.REDConfig {
	cfg := nic.REDConfig{
		BitrateBps:  ic.BitrateBps,
		BufferBytes: ic.BufferBytes,
		JitterRange: ic.JitterRange,
		Scale:       scale,
		Weight:      0.002,
		QMinBits:    8 * 5_000,
		QMaxBits:    8 * 15_000,
		QCapBits:    8 * 30_000,
		PMax:        0.1,
		MeanPktBytes: 1000,
	}
	if ic.RED != nil {
		r := ic.RED
		if r.Weight > 0 {
			cfg.Weight = r.Weight
		}
		if r.QMinBits > 0 {
			cfg.QMinBits = r.QMinBits
		}
		if r.QMaxBits > 0 {
			cfg.QMaxBits = r.QMaxBits
		}
		if r.QCapBits > 0 {
			cfg.QCapBits = r.QCapBits
		}
		if r.PMax > 0 {
			cfg.PMax = r.PMax
		}
		if r.MeanPktBytes > 0 {
			cfg.MeanPktBytes = r.MeanPktBytes
		}
		cfg.Wait = r.Wait
	}
	return cfg
}

// buildTopology constructs every net/host/link config.Load decoded,
// wiring each host's full protocol stack via topology.Builder.
func buildTopology(e *entity.Engine, m *config.Model, scale ltime.Scale) error {
	b := topology.NewBuilder(e)

	for _, net := range m.Nets {
		hostIfaces := make(map[int][]entity.InterfaceID)

		for hi, hc := range net.Hosts {
			timelineID := hc.Timeline
			if len(hc.Interface) <= 1 {
				var ip addr.IPAddr
				var queueSpec nic.DroptailConfig
				var redQueue nic.Queue
				if len(hc.Interface) == 1 {
					ic := hc.Interface[0]
					parsed, err := addr.ParseIP(ic.IP)
					if err != nil {
						return fmt.Errorf("host %s: %w", hc.Name, err)
					}
					ip = parsed
					queueSpec = nic.DroptailConfig{BitrateBps: ic.BitrateBps, BufferBytes: ic.BufferBytes, Scale: scale}
					if ic.Queue == "red" {
						redQueue = nic.NewREDQueue(redConfigFromInterface(ic, scale))
					}
				}
				host, err := b.AddHost(entity.TopNet, topology.HostSpec{
					Name: hc.Name, TimelineID: timelineID, IP: ip, Queue: queueSpec, TCP: hc.TCP,
				})
				if err != nil {
					return err
				}
				if redQueue != nil {
					b.SetInterfaceQueue(host.Iface, redQueue)
				}
				hostIfaces[hi] = []entity.InterfaceID{host.Iface}
				continue
			}

			ips := make([]addr.IPAddr, len(hc.Interface))
			for i, ic := range hc.Interface {
				parsed, err := addr.ParseIP(ic.IP)
				if err != nil {
					return fmt.Errorf("host %s interface %d: %w", hc.Name, i, err)
				}
				ips[i] = parsed
			}
			router, err := b.AddRouter(entity.TopNet, topology.RouterSpec{
				Name: hc.Name, TimelineID: timelineID, Interfaces: ips,
			})
			if err != nil {
				return err
			}
			hostIfaces[hi] = router.Ifaces
		}

		for li, lc := range net.Links {
			if len(lc.Attach) < 2 {
				return fmt.Errorf("net %s link %d: attach must name at least 2 interfaces", net.Name, li)
			}
			ifaces := make([]entity.InterfaceID, 0, len(lc.Attach))
			for _, a := range lc.Attach {
				nhi, err := addr.ParseNhi(a)
				if err != nil {
					return fmt.Errorf("net %s link %d: %w", net.Name, li, err)
				}
				if len(nhi.Ids) == 0 {
					return fmt.Errorf("net %s link %d: malformed attach %q", net.Name, li, a)
				}
				hostIdx := nhi.Ids[0]
				ifids, ok := hostIfaces[hostIdx]
				if !ok || nhi.Iface >= len(ifids) {
					return fmt.Errorf("net %s link %d: attach %q names an unknown host/interface", net.Name, li, a)
				}
				ifaces = append(ifaces, ifids[nhi.Iface])
			}
			link := topology.LinkSpec{
				MinDelay:   ltime.D2T(lc.MinDelaySeconds, scale),
				PropDelay:  ltime.D2T(lc.PropDelaySeconds, scale),
				BitrateBps: 10_000_000,
			}
			if _, err := b.Connect(ifaces, link); err != nil {
				return err
			}
		}
	}
	return nil
}
