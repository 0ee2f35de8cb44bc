// cmd/chordnode is the entrypoint for a single ring member.
//
// Configuration is entirely via flags so a single binary can serve any
// role in the ring.
//
// Example — start a bootstrap node:
//
//	./chordnode --addr :9000 --debug-addr :9100 --bootstrap-node --k 2 --mode chain
//
// Example — start a peer that joins through it:
//
//	./chordnode --addr :9001 --debug-addr :9101 --join localhost:9000
package main

import (
	"context"
	"flag"
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

func main() {
	addr := flag.String("addr", ":9000", "Listen address for the ring protocol (host:port)")
	debugAddr := flag.String("debug-addr", ":9100", "Listen address for the debug HTTP surface")
	bootstrapNode := flag.Bool("bootstrap-node", false, "Start this node as the first member of a new ring")
	joinAddr := flag.String("join", "", "Address of an existing ring member to join through")
	k := flag.Uint("k", 2, "Replication factor (number of replica copies beyond the primary)")
	mode := flag.String("mode", "chain", "Replication discipline: eventual or chain")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if !*bootstrapNode && *joinAddr == "" {
		log.Fatal("either --bootstrap-node or --join must be given")
	}
	if *bootstrapNode && *joinAddr != "" {
		log.Fatal("--bootstrap-node and --join are mutually exclusive")
	}

	consistency, err := parseMode(*mode)
	if err != nil {
		log.Fatal(err)
	}

	selfInfo, err := resolveSelf(*addr)
	if err != nil {
		log.WithError(err).Fatal("resolving own address")
	}

	mx := metrics.New(prometheus.DefaultRegisterer)

	var bootstrap *ring.NodeInfo
	if *joinAddr != "" {
		bootstrap = &ring.NodeInfo{}
	}

	node := cluster.New(cluster.Config{
		Info:      selfInfo,
		Bootstrap: bootstrap,
		K:         uint8(*k),
		Mode:      consistency,
		Sender:    transport.NewClient(),
		Logger:    log,
		Metrics:   mx,
	})

	srv, err := transport.Listen(*addr, node, log)
	if err != nil {
		log.WithError(err).Fatal("binding ring protocol listener")
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.WithError(err).Warn("ring protocol listener stopped")
		}
	}()

	if *bootstrapNode {
		node.InitBootstrap()
		log.WithField("addr", selfInfo.String()).Info("ring bootstrapped")
	} else {
		log.WithFields(logrus.Fields{"addr": selfInfo.String(), "via": *joinAddr}).Info("joining ring")
		msg, err := proto.NewMessage(proto.KindJoin, &selfInfo, proto.JoinData{NewNode: selfInfo})
		if err != nil {
			log.WithError(err).Fatal("encoding join request")
		}
		client := transport.NewClient()
		if err := client.Send(*joinAddr, msg); err != nil {
			log.WithError(err).Fatal("sending join request")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(log), api.Recovery(log))
	api.NewHandler(node).Register(router)

	debugSrv := &http.Server{
		Addr:         *debugAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", *debugAddr).Info("debug http surface listening")
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("debug http surface failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := debugSrv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("debug http surface shutdown error")
	}
	srv.Close()
}

func parseMode(s string) (proto.ConsistencyMode, error) {
	switch s {
	case "eventual":
		return proto.Eventual, nil
	case "chain":
		return proto.Chain, nil
	case "quorum":
		return 0, errUnsupportedMode
	default:
		return 0, errUnknownMode
	}
}

var (
	errUnsupportedMode = modeError("quorum mode has no working protocol in this build; start with --mode eventual or --mode chain")
	errUnknownMode     = modeError("unknown --mode, want eventual or chain")
)

type modeError string

func (e modeError) Error() string { return string(e) }

// resolveSelf splits a listen address of the form host:port into a
// ring.NodeInfo, resolving a bare port (":9000") against the outbound
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
