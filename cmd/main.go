package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pcap "github.com/packetcap/go-pcapfilter"
	"github.com/packetcap/go-pcapfilter/internal/config"
)

var (
	configFile    string
	debug         bool
	logFormat     string
	metricsListen string

	useGopacket bool
	iface       string
	timeout     time.Duration

	cfg      *config.Config
	compiler *pcap.Compiler
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "pcapfilter",
	Short:        "Compile, verify and apply tcpdump filter expressions",
	Long:         `Compile, verify and apply tcpdump filter expressions, either to a live interface or to packets read from a pcap file`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		if debug {
			cfg.Log.Level = "debug"
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if metricsListen != "" {
			cfg.Metrics.Listen = metricsListen
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Log.Configure(log.StandardLogger()); err != nil {
			return err
		}

		var opts []pcap.CompilerOption
		if cfg.Metrics.Listen != "" {
			reg := prometheus.NewRegistry()
			opts = append(opts, pcap.WithMetrics(pcap.NewMetrics(reg)))
			serveMetrics(cfg.Metrics.Listen, reg)
		}
		compiler = pcap.NewCompiler(opts...)
		log.Debugf("filter backend %s", compiler.Version())
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture [expression...]",
	Short: "Capture packets for all interfaces (default) or a given interface, filtered by the expression",
	Long:  `Capture packets for all interfaces (default) or a given interface, filtered by the expression given as the remaining arguments`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			handle *pcap.Handle
			count  int
			err    error
		)
		filter := strings.Join(args, " ")
		if iface == "" {
			iface = cfg.Interface
		}
		if !cmd.Flags().Changed("timeout") {
			timeout = cfg.Timeout
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("capturing from interface %s\n", iface)
		if handle, err = pcap.OpenLive(ctx, iface, cfg.Snaplen, cfg.Promiscuous, timeout); err != nil {
			return err
		}
		defer handle.Close()
		if err := pcap.NewLiveFilterController(compiler).SetFilter(handle, filter); err != nil {
			return fmt.Errorf("unexpected error setting filter: %w", err)
		}
		if useGopacket {
			packetSource := gopacket.NewPacketSource(handle, layers.LinkType(handle.LinkType()))
			for packet := range packetSource.Packets() {
				processPacket(packet, count)
				count++
			}
		} else {
			for packet := range handle.Listen() {
				if packet.Error != nil {
					log.Warnf("read failed: %v", packet.Error)
					continue
				}
				processPacket(gopacket.NewPacket(packet.B, layers.LinkType(handle.LinkType()), gopacket.Default), count)
				count++
			}
		}
		fmt.Printf("captured %d packets\n", count)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print lots of debugging messages")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format, text or json; overrides the config file")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "serve prometheus metrics on this address, e.g. :9091")

	captureCmd.Flags().BoolVar(&useGopacket, "gopacket", false, "use gopacket interface instead of simple pcap.Listen")
	captureCmd.Flags().StringVarP(&iface, "interface", "i", "", "interface from which to capture, default to all")
	captureCmd.Flags().DurationVar(&timeout, "timeout", 0, "read timeout, e.g. 100ms, 1s; default 0 means block until a packet arrives")

	rootCmd.AddCommand(captureCmd, verifyCmd, matchCmd, compileCmd, versionCmd)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
}

func processPacket(packet gopacket.Packet, count int) {
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv4)
		fmt.Printf("%d: IP packet from src %s to dst %s\n", count, ip.SrcIP, ip.DstIP)
	}
	if ipLayer := packet.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip, _ := ipLayer.(*layers.IPv6)
		fmt.Printf("%d: IPv6 packet from src %s to dst %s\n", count, ip.SrcIP, ip.DstIP)
	}
	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp, _ := udpLayer.(*layers.UDP)
		fmt.Printf("%d: UDP packet from src port %d to dst port %d\n", count, udp.SrcPort, udp.DstPort)
	}
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, _ := tcpLayer.(*layers.TCP)
		fmt.Printf("%d: TCP packet from src port %d to dst port %d\n", count, tcp.SrcPort, tcp.DstPort)
	}
	for i, layer := range packet.Layers() {
		fmt.Printf("%d: PACKET LAYER %d: %s\n", count, i, layer.LayerType())
	}

	data := packet.Data()
	if len(data) > 50 {
		data = data[:50]
	}
	fmt.Printf("%d: packet size %d, first bytes %d\n", count, packet.Metadata().CaptureLength, data)
}
