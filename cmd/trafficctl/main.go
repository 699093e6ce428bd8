// Command trafficctl queries a running agent over its gRPC bridge.
//
//	trafficctl -addr 127.0.0.1:7481 getTotalRxBytes
//	trafficctl getUidTxBytes 10023
//	trafficctl -list
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trafficstats-agent/internal/bridge"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7481", "agent grpc bridge address")
	list := flag.Bool("list", false, "list available methods")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := bridge.NewClient(conn)

	if *list {
		methods, err := client.ListMethods(ctx)
		if err != nil {
			log.Fatalf("list methods: %v", err)
		}
		for _, m := range methods {
			if m.TakesUID {
				fmt.Printf("%s <uid>\n", m.Name)
				continue
			}
			fmt.Println(m.Name)
		}
		return
	}

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: trafficctl [-addr host:port] <method> [uid]")
		os.Exit(2)
	}
	var uid *int32
	if len(args) == 2 {
		v, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			log.Fatalf("parse uid %q: %v", args[1], err)
		}
		u := int32(v)
		uid = &u
	}
	v, err := client.Invoke(ctx, args[0], uid)
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
	fmt.Println(v)
}
