package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/getlantern/golog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/getlantern/figcn"
)

var log = golog.LoggerFor("figcnproxy")

func main() {
	flags := pflag.NewFlagSet("figcnproxy", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "path to a YAML configuration file")
	flags.String("listen", "", "proxy listen address (host:port)")
	flags.String("upstream", "", "upstream proxy URL to forward requests through")
	flags.String("admin", "", "admin listen address for /metrics and /healthz, empty disables it")
	flags.String("verbosity", "", "silent or verbose")
	flags.String("rules-source", "", "inline or external")
	flags.String("rules-file", "", "path to the rules document")
	flags.Bool("watch", false, "reload rules when the rules file changes")
	flags.StringSlice("allow-hosts", nil, "extra hosts whose TLS connections are intercepted")
	flags.Parse(os.Args[1:])

	cfg, err := figcn.LoadConfig(*configFile, flagOverrides(flags))
	if err != nil {
		log.Fatal(err)
	}

	figcn.InitMetrics()

	store := figcn.NewRuleStore(figcn.DefaultRuleSet(), figcn.DefaultDecoders())
	src := cfg.Source()
	store.Load(src)

	if src.Kind == figcn.SourceExternal {
		reloader, err := figcn.NewReloader(store, src, cfg.Rules.Watch)
		if err != nil {
			log.Fatal(err)
		}
		defer reloader.Close()
	}

	interceptor := figcn.NewInterceptor(store, cfg.InterceptorOptions())

	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = cfg.Verbosity == string(figcn.Verbose)
	if cfg.Upstream != "" {
		upstream, err := url.Parse(cfg.Upstream)
		if err != nil {
			log.Fatalf("Invalid upstream %v: %v", cfg.Upstream, err)
		}
		proxy.Tr.Proxy = http.ProxyURL(upstream)
		proxy.ConnectDial = proxy.NewConnectDialToProxy(cfg.Upstream)
		log.Debugf("Forwarding through upstream proxy %v", cfg.Upstream)
	}
	proxy.OnRequest().HandleConnectFunc(interceptor.HandleConnect)
	proxy.OnRequest().DoFunc(interceptor.HandleRequest)

	server := &http.Server{Addr: cfg.Listen, Handler: proxy}
	go func() {
		log.Debugf("Proxy listening on %v", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Proxy server failed: %v", err)
		}
	}()

	var admin *http.Server
	if cfg.Admin != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
		admin = &http.Server{Addr: cfg.Admin, Handler: mux}
		go func() {
			log.Debugf("Admin listening on %v", cfg.Admin)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Admin server failed: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Debug("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Proxy shutdown error: %v", err)
	}
	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			log.Errorf("Admin shutdown error: %v", err)
		}
	}
}

// flagOverrides maps the flags that were set explicitly to configuration keys.
func flagOverrides(flags *pflag.FlagSet) map[string]interface{} {
	keys := map[string]string{
		"listen":       "listen",
		"upstream":     "upstream",
		"admin":        "admin",
		"verbosity":    "verbosity",
		"rules-source": "rules.source",
		"rules-file":   "rules.file",
		"watch":        "rules.watch",
		"allow-hosts":  "allow_hosts",
	}
	overrides := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}
		switch f.Name {
		case "watch":
			v, _ := flags.GetBool(f.Name)
			overrides[key] = v
		case "allow-hosts":
			v, _ := flags.GetStringSlice(f.Name)
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	})
	return overrides
}
