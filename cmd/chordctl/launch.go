package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chorddht/internal/api"
	"chorddht/internal/cluster"
	"chorddht/internal/metrics"
	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// launchConfig describes one ring member to bring up in the foreground.
// bootstrap and node share this launcher; they differ only in whether a
// Join request is sent once the listener is up.
type launchConfig struct {
	addr      string
	debugAddr string
	bootstrap bool
	joinAddr  string
	k         uint8
	mode      proto.ConsistencyMode
}

// launchNode runs a node to completion (blocking on SIGINT/SIGTERM),
// matching the shape of cmd/chordnode's standalone launcher but driven
// from chordctl's bootstrap/node subcommands so the original tool's
// single-binary surface is preserved.
func launchNode(cfg launchConfig) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	selfInfo, err := resolveSelf(cfg.addr)
	if err != nil {
		return err
	}

	mx := metrics.New(prometheus.DefaultRegisterer)

	var bootstrapRef *ring.NodeInfo
	if cfg.joinAddr != "" {
		bootstrapRef = &ring.NodeInfo{}
	}

	node := cluster.New(cluster.Config{
		Info:      selfInfo,
		Bootstrap: bootstrapRef,
		K:         cfg.k,
		Mode:      cfg.mode,
		Sender:    transport.NewClient(),
		Logger:    log,
		Metrics:   mx,
	})

	srv, err := transport.Listen(cfg.addr, node, log)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.WithError(err).Warn("ring protocol listener stopped")
		}
	}()

	if cfg.bootstrap {
		node.InitBootstrap()
		log.WithField("addr", selfInfo.String()).Info("ring bootstrapped")
	} else {
		log.WithFields(logrus.Fields{"addr": selfInfo.String(), "via": cfg.joinAddr}).Info("joining ring")
		msg, err := proto.NewMessage(proto.KindJoin, &selfInfo, proto.JoinData{NewNode: selfInfo})
		if err != nil {
			return err
		}
		if err := transport.NewClient().Send(cfg.joinAddr, msg); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(log), api.Recovery(log))
	api.NewHandler(node).Register(router)

	debugSrv := &http.Server{
		Addr:         cfg.debugAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.debugAddr).Info("debug http surface listening")
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("debug http surface failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	srv.Close()
	return nil
}

// resolveSelf splits a listen address of the form host:port into a
// ring.NodeInfo, resolving a bare host (":9000") against the outbound
// interface so the node advertises a reachable address to peers.
func resolveSelf(addr string) (ring.NodeInfo, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return ring.NodeInfo{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ring.NodeInfo{}, err
	}

	if host == "" {
		conn, err := net.Dial("udp", "8.8.8.8:80")
		if err != nil {
			return ring.NodeInfo{}, err
		}
		defer conn.Close()
		host = conn.LocalAddr().(*net.UDPAddr).IP.String()
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return ring.NodeInfo{}, err
		}
		ip = ips[0]
	}
	return ring.NewNodeInfo(ip, port), nil
}
