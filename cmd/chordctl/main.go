// cmd/chordctl is the CLI entry-point, built with Cobra, matching the
// original tool's surface: `bootstrap`/`node` launch ring members in the
// foreground, `cli` drives one against a running ring over the
// reply-socket shim.
//
// Usage:
//
//	chordctl bootstrap 2 1
//	chordctl node 1
//	chordctl cli 127.0.0.1 9001 insert foo bar
//	chordctl cli 127.0.0.1 9001 query foo
//	chordctl cli 127.0.0.1 9002 join
//	chordctl cli 127.0.0.1 9001 requests ./batch.txt
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"chorddht/internal/client"
	"chorddht/internal/proto"
	"chorddht/internal/ring"

	"github.com/spf13/cobra"
)

// apiPort is the base TCP port for the ring protocol. "node <n>" listens
// on apiPort+n, matching the original tool's port-numbering scheme.
const apiPort = 9000

// replyPort is the fixed local port the cli subcommand's reply-socket
// shim binds to await a Reply.
const replyPort = 9500

var bootstrapIP string

func main() {
	root := &cobra.Command{
		Use:   "chordctl",
		Short: "launch and drive a Chord-style distributed hash table ring",
	}
	root.PersistentFlags().StringVar(&bootstrapIP, "bootstrap-ip", "127.0.0.1",
		"IP address peer nodes contact to join the ring")

	root.AddCommand(bootstrapCmd(), nodeCmd(), cliCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <k> <m>",
		Short: "start the bootstrap node with replication factor k and mode m (0=eventual, 1=chain; 2=quorum is rejected)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid k: %w", err)
			}
			m, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid mode: %w", err)
			}
			mode, err := modeFromInt(m)
			if err != nil {
				return err
			}
			return launchNode(launchConfig{
				addr:      net.JoinHostPort(bootstrapIP, strconv.Itoa(apiPort)),
				debugAddr: net.JoinHostPort(bootstrapIP, strconv.Itoa(apiPort+1000)),
				bootstrap: true,
				k:         uint8(k),
				mode:      mode,
			})
		},
	}
}

func nodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node <n>",
		Short: "start a peer node on local IP, port = API_PORT + n, joining through the bootstrap node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid n: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("n must be nonzero, 0 is reserved for the bootstrap")
			}
			port := apiPort + n
			return launchNode(launchConfig{
				addr:      fmt.Sprintf(":%d", port),
				debugAddr: fmt.Sprintf(":%d", port+1000),
				bootstrap: false,
				joinAddr:  net.JoinHostPort(bootstrapIP, strconv.Itoa(apiPort)),
			})
		},
	}
}

func modeFromInt(m int) (proto.ConsistencyMode, error) {
	switch m {
	case 0:
		return proto.Eventual, nil
	case 1:
		return proto.Chain, nil
	case 2:
		return 0, fmt.Errorf("quorum mode (2) has no working protocol in this build; use 0 or 1")
	default:
		return 0, fmt.Errorf("mode must be 0 (eventual) or 1 (chain)")
	}
}

// ─── cli ────────────────────────────────────────────────────────────────────

func cliCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cli <ip> <port> <command> [args...]",
		Short: "send one request to a running node and print its reply",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := net.JoinHostPort(args[0], args[1])
			return runCliCommand(addr, args[2], args[3:])
		},
	}
	return cmd
}

func runCliCommand(addr, op string, rest []string) error {
	shim := client.NewShim(replyPort)

	switch op {
	case "help":
		printHelp()
		return nil
	case "requests":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cli <ip> <port> requests <file>")
		}
		return runBatch(shim, addr, rest[0])
	case "insert":
		if len(rest) != 2 {
			return fmt.Errorf("usage: cli <ip> <port> insert <key> <value>")
		}
		return sendOne(shim, addr, proto.KindInsert, proto.InsertData{Key: rest[0], Value: rest[1]})
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cli <ip> <port> delete <key>")
		}
		return sendOne(shim, addr, proto.KindDelete, proto.DeleteData{Key: rest[0]})
	case "query":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cli <ip> <port> query <key>|*")
		}
		if rest[0] == "*" {
			return sendOne(shim, addr, proto.KindQueryAll, proto.QueryAllData{})
		}
		return sendOne(shim, addr, proto.KindQuery, proto.QueryData{Key: rest[0]})
	case "overlay":
		return sendOne(shim, addr, proto.KindOverlay, proto.OverlayData{})
	case "depart":
		return sendOne(shim, addr, proto.KindQuit, proto.QuitData{})
	case "join":
		return sendJoin(shim, addr)
	default:
		return fmt.Errorf("unknown command %q, see 'cli <ip> <port> help'", op)
	}
}

// sendJoin asks the bootstrap to bring the node listening at addr into
// the ring. addr must already be running, offline and reachable (for
// example a node that has departed; chordnode itself always either
// bootstraps or sends its own Join at startup): AckJoin is
// delivered straight to it, not to this cli invocation, so the node
// installs its own neighbor state and flips itself online. This cli
// call only waits on the final confirmation Reply that node sends back
// once AckJoin lands.
func sendJoin(shim *client.Shim, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("invalid ip %q", host)
	}
	newNode := ring.NewNodeInfo(ip, port)
	bootstrapAddr := net.JoinHostPort(bootstrapIP, strconv.Itoa(apiPort))
	return sendOne(shim, bootstrapAddr, proto.KindJoin, proto.JoinData{NewNode: newNode})
}

func sendOne(shim *client.Shim, addr string, kind proto.Kind, payload any) error {
	reply, err := shim.Send(addr, kind, payload)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// runBatch replays a file of `op, arg1[, arg2]` lines, one request per
// line. Blank lines and lines starting with '#' are ignored.
//
// Supported ops: insert,key,value / delete,key / query,key / query,* /
// overlay / join / depart.
func runBatch(shim *client.Shim, addr, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		op := fields[0]
		args := fields[1:]
		if err := runCliCommand(addr, op, args); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", line, err)
		}
	}
	return scanner.Err()
}

func printHelp() {
	fmt.Println(strings.TrimSpace(`
insert <key> <value>   store a value under key, merging if key exists
delete <key>            remove a key
query <key>|*           look up a key, or * for every record in the ring
overlay                 list every live node in ring order
depart                  leave the ring
join                    ask the bootstrap to bring this address into the ring
                        (the node at <ip> <port> must already be running)
requests <file>         replay a batch file of op,arg1[,arg2] lines
help                    show this message
`))
}
