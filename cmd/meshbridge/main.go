package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meshcore-tools/meshbridge/pkg/api"
	"github.com/meshcore-tools/meshbridge/pkg/bridge"
	"github.com/meshcore-tools/meshbridge/pkg/crypto"
	"github.com/meshcore-tools/meshbridge/pkg/protocol"
	"github.com/meshcore-tools/meshbridge/pkg/storage"
)

const (
	defaultPort   = 5002
	defaultDBPath = "./data/meshbridge.db"
)

var (
	host    = flag.String("host", "", "Bridge device host (required)")
	port    = flag.Int("port", defaultPort, "Bridge device port")
	sender  = flag.String("sender", "", "Sender name for group texts (default Bot<n>)")
	dbPath  = flag.String("db", defaultDBPath, "Packet log database path (empty to disable)")
	apiPort = flag.Int("api", 0, "HTTP API port (0 to disable)")
)

func main() {
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "Usage: meshbridge -host <host> [-port 5002] [-sender Alice]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Interactive commands:")
		fmt.Fprintln(os.Stderr, "  <hex>        - Send raw packet (e.g. 150011...)")
		fmt.Fprintln(os.Stderr, "  msg <text>   - Build+send public GRP_TXT as sender")
		fmt.Fprintln(os.Stderr, "  name <nick>  - Change sender name")
		fmt.Fprintln(os.Stderr, "  quit/exit    - Disconnect")
		os.Exit(1)
	}

	senderName := *sender
	if senderName == "" {
		senderName = fmt.Sprintf("Bot%d", rand.Intn(999)+1)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	client := bridge.NewClient(addr, crypto.PublicChannelSecret(), senderName)

	if *dbPath != "" {
		if err := os.MkdirAll("./data", 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		packetLog, err := storage.NewPacketLog(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open packet log: %v", err)
		}
		defer packetLog.Close()
		client.AttachPacketLog(packetLog)
		log.Printf("Packet log at %s", *dbPath)

		if *apiPort > 0 {
			startAPI(client, packetLog)
		}
	} else if *apiPort > 0 {
		startAPI(client, nil)
	}

	log.Printf("Connecting to %s...", addr)
	if err := client.Connect(); err != nil {
		log.Fatalf("Cannot connect: %v", err)
	}
	defer client.Close()

	log.Printf("Sender: %s", client.Sender())

	client.OnGroupText = func(gt *protocol.GroupText, _ *protocol.Packet) {
		fmt.Printf("\n[%s] %s: %s\n> ", time.Unix(int64(gt.Timestamp), 0).Format("15:04:05"), gt.Sender, gt.Text)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	packets := client.Start(ctx)
	go func() {
		for pkt := range packets {
			displayPacket(pkt)
		}
	}()

	fmt.Println("Type hex packet to send, 'msg <text>' for a public group text, 'quit' to exit")
	interactiveLoop(ctx, cancel, client)

	log.Println("Disconnected")
}

func startAPI(client *bridge.Client, packetLog *storage.PacketLog) {
	config := api.DefaultConfig()
	config.Port = *apiPort

	server := api.NewServer(client, packetLog, config)
	go func() {
		log.Printf("HTTP API on :%d", config.Port)
		if err := server.Start(config); err != nil {
			log.Printf("API server failed: %v", err)
		}
	}()
}

// interactiveLoop reads commands from stdin until quit, EOF, or
// cancellation.
func interactiveLoop(ctx context.Context, cancel context.CancelFunc, client *bridge.Client) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			cancel()
			return
		}
		if ctx.Err() != nil {
			return
		}

		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}

		switch lower := strings.ToLower(cmd); {
		case lower == "quit" || lower == "exit" || lower == "q":
			cancel()
			return

		case hasCommand(lower, "msg", "text"):
			_, text, _ := strings.Cut(cmd, " ")
			text = strings.TrimSpace(text)
			if text == "" {
				fmt.Println("[!] No text provided")
				continue
			}
			n, err := client.SendGroupText(text)
			if err != nil {
				fmt.Printf("[!] Error: %v\n", err)
				continue
			}
			fmt.Printf("[ok] Sent text as '%s' (%dB packet)\n", client.Sender(), n)

		case hasCommand(lower, "name"):
			_, name, _ := strings.Cut(cmd, " ")
			name = strings.TrimSpace(name)
			if name == "" {
				fmt.Println("[!] No name provided")
				continue
			}
			client.SetSender(name)
			fmt.Printf("[*] Sender changed to %s\n", name)

		default:
			// Assume hex packet
			n, err := client.SendRawHex(cmd)
			if err != nil {
				fmt.Printf("[!] Error: %v\n", err)
				continue
			}
			fmt.Printf("[ok] Sent %d bytes\n", n)
		}
	}
}

// hasCommand reports whether line starts with one of the given command
// words, with or without a leading slash.
func hasCommand(line string, words ...string) bool {
	for _, w := range words {
		if strings.HasPrefix(line, w+" ") || strings.HasPrefix(line, "/"+w+" ") {
			return true
		}
	}
	return false
}

func displayPacket(pkt *protocol.Packet) {
	info := bridge.Inspect(pkt)
	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Printf("RX [%s] %s\n", time.Now().Format("15:04:05"), info)
	fmt.Printf("%s\n> ", strings.Repeat("=", 60))
}
