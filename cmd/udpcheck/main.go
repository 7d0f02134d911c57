// Command udpcheck listens for game telemetry and reports whether any is arriving.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"justapengu.in/livetiming/internal/telemetry"
)

var (
	address        string
	port           int
	reportInterval time.Duration
	dumpHeaders    bool
)

func init() {
	flag.StringVar(&address, "address", "0.0.0.0", "address to listen on")
	flag.IntVar(&port, "port", telemetry.DefaultPort, "telemetry UDP port")
	flag.DurationVar(&reportInterval, "interval", 5*time.Second, "how often to report packet rates")
	flag.BoolVar(&dumpHeaders, "dump", false, "dump the header of the first packet of each type")
	flag.Parse()
}

var (
	info    = color.New(color.FgCyan)
	success = color.New(color.FgGreen, color.Bold)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
)

type counts struct {
	packets   uint64
	bytes     uint64
	malformed uint64
	byType    map[telemetry.PacketID]uint64
}

func main() {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(address), Port: port})

	if err != nil {
		failure.Printf("Could not listen on %s:%d: %s\n", address, port, err)
		os.Exit(1)
	}

	info.Printf("Listening for telemetry on %s\n", conn.LocalAddr())
	info.Println("Make sure the game is running with UDP telemetry enabled. Press Ctrl+C to stop.")

	ctx, cfn := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cfn()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	c := counts{byType: make(map[telemetry.PacketID]uint64)}
	start := time.Now()
	lastReport := start
	buf := make([]byte, 2048)

	for {
		n, from, err := conn.ReadFromUDP(buf)

		if err != nil {
			if ctx.Err() != nil {
				break
			}

			warning.Printf("Read error: %s\n", err)
			continue
		}

		c.packets++
		c.bytes += uint64(n)

		if c.packets == 1 {
			success.Printf("First telemetry packet received from %s (%s)\n", from, humanize.Bytes(uint64(n)))
		}

		if header, err := telemetry.ReadHeader(telemetry.NewPacket(buf[:n])); err != nil {
			c.malformed++

			if c.malformed == 1 {
				warning.Printf("Packet could not be decoded: %s (is the game's UDP format set to %d?)\n", err, telemetry.PacketFormat2024)
			}
		} else {
			c.byType[header.PacketID]++

			if dumpHeaders && c.byType[header.PacketID] == 1 {
				info.Printf("First %s packet (%d bytes):\n", header.PacketID, n)
				spew.Dump(header)
			}
		}

		if since := time.Since(lastReport); since >= reportInterval {
			report(c, time.Since(start))
			lastReport = time.Now()
		}
	}

	fmt.Println()
	summary(c, time.Since(start))
}

func report(c counts, elapsed time.Duration) {
	seconds := elapsed.Seconds()

	info.Printf(
		"Received %s packets (%.1f packets/s, %s/s)\n",
		humanize.Comma(int64(c.packets)), float64(c.packets)/seconds, humanize.Bytes(uint64(float64(c.bytes)/seconds)),
	)
}

func summary(c counts, elapsed time.Duration) {
	if c.packets == 0 {
		failure.Println("Listener stopped. No telemetry packets were received.")
		fmt.Println("Check that:")
		fmt.Println("  1. The game is running")
		fmt.Println("  2. UDP telemetry is enabled in the game settings")
		fmt.Printf("  3. The UDP port is set to %d\n", port)
		fmt.Println("  4. No firewall is blocking the UDP traffic")
		return
	}

	success.Println("Listener stopped. Summary:")
	fmt.Printf("  Received %s packets (%s) in %s\n", humanize.Comma(int64(c.packets)), humanize.Bytes(c.bytes), elapsed.Round(time.Millisecond))
	fmt.Printf("  Average rate: %.1f packets/s\n", float64(c.packets)/elapsed.Seconds())

	if c.malformed > 0 {
		warning.Printf("  %d packets could not be decoded\n", c.malformed)
	}

	ids := make([]telemetry.PacketID, 0, len(c.byType))

	for id := range c.byType {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		fmt.Printf("  %-20s %s\n", id, humanize.Comma(int64(c.byType[id])))
	}
}
