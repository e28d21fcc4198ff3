package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gopacket/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/bpf"

	pcap "github.com/packetcap/go-pcapfilter"
)

var (
	readFile    string
	compileLink string
)

var errInvalid = errors.New("invalid filter expression")

var verifyCmd = &cobra.Command{
	Use:   "verify <expression...>",
	Short: "Check whether a filter expression compiles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := strings.Join(args, " ")
		e := pcap.NewOfflineEvaluator(compiler, pcap.WithLinkParams(cfg.UnboundParams()))
		defer e.Close()
		if !e.Verify(expr) {
			fmt.Printf("INVALID %q\n", expr)
			return errInvalid
		}
		fmt.Printf("VALID %q\n", expr)
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match -r <file.pcap> [expression...]",
	Short: "Print the packets of a pcap file that pass the filter expression",
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := strings.Join(args, " ")
		f, err := os.Open(readFile)
		if err != nil {
			return err
		}
		defer f.Close()
		r, err := pcapgo.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", readFile, err)
		}

		params := pcap.UnboundParams(uint32(r.LinkType()), int32(r.Snaplen()))
		e := pcap.NewOfflineEvaluator(compiler, pcap.WithLinkParams(params))
		defer e.Close()

		var total, matched int
		for {
			data, ci, err := r.ReadPacketData()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("packet %d: %w", total, err)
			}
			ok, err := e.MatchesCaptured(expr, data, ci)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("%d: %s length %d\n", total, ci.Timestamp.Format("15:04:05.000000"), ci.Length)
				matched++
			}
			total++
		}
		log.Debugf("read %d packets from %s", total, readFile)
		fmt.Printf("%d of %d packets matched\n", matched, total)
		return nil
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile [expression...]",
	Short: "Print the BPF program for a filter expression",
	RunE: func(cmd *cobra.Command, args []string) error {
		params := cfg.UnboundParams()
		if compileLink != "" {
			switch compileLink {
			case "ethernet":
				params.LinkType = pcap.LinkTypeEthernet
			case "null":
				params.LinkType = pcap.LinkTypeNull
			default:
				return fmt.Errorf("unsupported link type %q", compileLink)
			}
		}
		p, err := compiler.Compile(strings.Join(args, " "), params)
		if err != nil {
			return err
		}
		defer p.Release()
		insts, _ := bpf.Disassemble(p.Instructions())
		for i, inst := range insts {
			fmt.Printf("(%03d) %s\n", i, inst)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the filter compiler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(pcap.LibraryVersion())
	},
}

func init() {
	matchCmd.Flags().StringVarP(&readFile, "read", "r", "", "pcap file to read packets from")
	_ = matchCmd.MarkFlagRequired("read")
	compileCmd.Flags().StringVar(&compileLink, "link-type", "", "link type to compile for, ethernet or null; defaults to the config")
}
