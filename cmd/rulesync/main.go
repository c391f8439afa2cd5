package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/rulesync/internal/config"
	"github.com/John-Robertt/rulesync/internal/fetch"
	"github.com/John-Robertt/rulesync/internal/httpapi"
	"github.com/John-Robertt/rulesync/internal/metrics"
	"github.com/John-Robertt/rulesync/internal/store"
	"github.com/John-Robertt/rulesync/internal/syncer"
)

const defaultListen = "127.0.0.1:25500"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches the subcommand; "sync" is the default.
func run(args []string) int {
	cmd := "sync"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "sync":
		return runSync(args)
	case "serve":
		return runServe(args)
	case "healthcheck":
		return runHealthcheckCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want sync | serve | healthcheck)\n", cmd)
		return 2
	}
}

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultFile, "配置文件路径（YAML）")
	root := fs.String("root", "", "仓库根目录（覆盖配置文件中的 root）")
	metricsFile := fs.String("metrics-file", "", "运行结束后写出的 Prometheus textfile 路径")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Load(*configPath, !explicit)
	if err != nil {
		log.Printf("sync config=%s err=%v", *configPath, err)
		return 1
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *metricsFile != "" {
		cfg.MetricsFile = *metricsFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector()
	f := fetch.HTTPFetcher{Options: fetch.Options{Timeout: cfg.FetchTimeout}}
	_, runErr := syncer.New(cfg, store.FS{}, f, m).Run(ctx)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.Path(cfg.MetricsFile)); err != nil {
			log.Printf("metrics textfile=%s err=%v", cfg.MetricsFile, err)
		}
	}
	if runErr != nil {
		log.Printf("sync failed: %v", runErr)
		return 1
	}
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", defaultListen, "HTTP 监听地址")
	readHeaderTimeout := fs.Duration("read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout（请求头读取超时）")
	convertTimeout := fs.Duration("convert-timeout", 60*time.Second, "单次转换的总超时（包含远程拉取）")
	fetchTimeout := fs.Duration("fetch-timeout", fetch.DefaultTimeout, "url= 远程拉取的超时")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	srv := &http.Server{
		Addr: *listen,
		Handler: httpapi.NewHandlerWithOptions(httpapi.Options{
			ConvertTimeout: *convertTimeout,
			FetchTimeout:   *fetchTimeout,
		}),
		ReadHeaderTimeout: *readHeaderTimeout,
	}

	log.Printf("listening on http://%s", *listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Print(err)
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Print(err)
			return 1
		}
	}
	return 0
}

func runHealthcheckCmd(args []string) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	listen := fs.String("listen", defaultListen, "服务监听地址或 URL")
	timeout := fs.Duration("timeout", 2*time.Second, "健康检查超时")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	u, err := deriveHealthzURL(*listen)
	if err != nil {
		log.Printf("healthcheck listen=%q err=%v", *listen, err)
		return 1
	}
	if err := runHealthcheck(u, *timeout); err != nil {
		log.Printf("healthcheck url=%s err=%v", u, err)
		return 1
	}
	return 0
}

// deriveHealthzURL turns a listen address (or base URL) into the /healthz
// URL. Wildcard hosts are probed on loopback.
func deriveHealthzURL(listen string) (string, error) {
	listen = strings.TrimSpace(listen)
	if strings.HasPrefix(listen, "http://") || strings.HasPrefix(listen, "https://") {
		u, err := url.Parse(listen)
		if err != nil {
			return "", err
		}
		if u.Host == "" {
			return "", errors.New("url has no host")
		}
		u.Path = "/healthz"
		u.RawQuery = ""
		u.Fragment = ""
		return u.String(), nil
	}

	if !strings.Contains(listen, ":") {
		listen = ":" + listen
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", err
	}
	if port == "" {
		return "", errors.New("missing port")
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

func runHealthcheck(rawURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
