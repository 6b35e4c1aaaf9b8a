package app

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/giantswarm/toolgate/pkg/logging"
)

// sdNotify is swapped in tests.
var sdNotify = daemon.SdNotify

// runServeMode serves the gateway until ctx is done or SIGINT/SIGTERM
// arrives, notifying systemd when the listener is up and when shutdown
// begins. Outside systemd the notifications are no-ops.
func runServeMode(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := services.cfg.Toolgate.Gateway.ListenAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Error("Serve", err, "Failed to listen on %s", addr)
		return err
	}

	notify(daemon.SdNotifyReady)
	logging.Info("Serve", "Gateway ready on %s. Press Ctrl+C to stop.", ln.Addr())

	go func() {
		<-ctx.Done()
		notify(daemon.SdNotifyStopping)
	}()

	return services.Server.Serve(ctx, ln)
}

func notify(state string) {
	sent, err := sdNotify(false, state)
	if err != nil {
		logging.Warn("Serve", "systemd notification %q failed: %v", state, err)
		return
	}
	if sent {
		logging.Debug("Serve", "Sent systemd notification %q", state)
	}
}
