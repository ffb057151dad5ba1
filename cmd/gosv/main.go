// Command gosv is the process-supervision daemon: it loads a YAML service
// manifest and drives the internal/svc core until told to stop.
//
// Adapted from kornnellio-gosv/main.go's flag-based entrypoint, restructured
// as a cobra command tree (SPEC_FULL.md "AMBIENT STACK") in place of the
// teacher's bare flag.String/flag.Parse calls.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsvisor/gosv/internal/cgroup"
	"github.com/opsvisor/gosv/internal/config"
	"github.com/opsvisor/gosv/internal/ctlpool"
	"github.com/opsvisor/gosv/internal/daemon"
	"github.com/opsvisor/gosv/internal/fdreg"
	"github.com/opsvisor/gosv/internal/log"
	"github.com/opsvisor/gosv/internal/launch"
	"github.com/opsvisor/gosv/internal/notify"
	"github.com/opsvisor/gosv/internal/sigqueue"
	"github.com/opsvisor/gosv/internal/svc"
	"github.com/opsvisor/gosv/internal/wake"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "gosv",
		Short: "gosv supervises a population of services described by a YAML manifest",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the gosv version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("gosv (service supervision core)")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		manifestPath   string
		ctlPoolSize    int
		notifyRingSize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load the manifest and run the supervisor loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(manifestPath, ctlPoolSize, notifyRingSize)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "config", "c", "", "path to the YAML service manifest (required)")
	cmd.Flags().IntVar(&ctlPoolSize, "control-pool-size", 64, "capacity of the control-socket controller pool")
	cmd.Flags().IntVar(&notifyRingSize, "notify-ring-size", 256, "number of recent state-change notifications retained")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func serve(manifestPath string, ctlPoolSize, notifyRingSize int) error {
	log.Info().Str("config", manifestPath).Msg("loading manifest")
	manifest, err := config.Load(manifestPath)
	if err != nil {
		return err
	}

	clock := wake.New()
	fds := fdreg.New()
	ctls := ctlpool.New(ctlPoolSize)
	sink := notify.New(notifyRingSize)
	sigSource := sigqueue.New(clock, allTrackedSignals()...)
	launcher := launch.New(fds, ctls)

	reg := svc.NewRegistry(svc.Options{
		Clock:     clock,
		SigSource: sigSource,
		SigNums:   sigqueue.Numberer{},
		Notify:    sink,
		Launcher:  launcher,
	})

	limits, err := config.ApplyManifest(reg, manifest)
	if err != nil {
		return err
	}

	cg := cgroup.NewManager()
	d := daemon.New(reg, clock, cg, limits)

	var rec *svc.Record
	for {
		next, ok := reg.IterNext(rec, "")
		if !ok {
			break
		}
		rec = next
		reg.HandleStart(rec, clock.Now())
	}

	d.Run()
	return nil
}

// allTrackedSignals lists every signal internal/sigqueue polls for trigger
// matching (spec.md §4.4 "triggers"), independent of the smaller set
// internal/daemon watches for its own control purposes (SIGCHLD/SIGTERM/...).
func allTrackedSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2,
		syscall.SIGTERM, syscall.SIGINT, syscall.SIGALRM,
	}
}
