package profiling

import (
	"context"
	"net"
	"net/http"

	// Required for profiling
	_ "net/http/pprof"

	"github.com/kaspanet/btcconsensus/infrastructure/logger"
	"github.com/kaspanet/btcconsensus/util/panics"
)

// Start serves the pprof handlers on the given port until ctx is done
func Start(ctx context.Context, port string, log *logger.Logger) {
	listenAddr := net.JoinHostPort("", port)
	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))
	server := &http.Server{Addr: listenAddr, Handler: mux}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn(func() {
		log.Infof("Profile server listening on %s", listenAddr)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("Profile server: %s", err)
		}
	})
	spawn(func() {
		<-ctx.Done()
		server.Close()
	})
}
