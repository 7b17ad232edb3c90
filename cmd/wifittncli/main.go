package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mbobakov/grpc-consul-resolver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/balancer/roundrobin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthURI = flag.String("healthURI", "localhost:6666", "wifittnd grpc health URI, consul://host/service is supported")
	service   = flag.String("service", "wifittnd", "app name of the checked service")
	timeout   = flag.Duration("timeout", 2*time.Second, "check timeout")
)

func main() {
	flag.Parse()

	conn, err := grpc.Dial(*healthURI,
		grpc.WithInsecure(),
		grpc.WithBalancerName(roundrobin.Name), //nolint:staticcheck
	)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := healthpb.NewHealthClient(conn)
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{
		Service: fmt.Sprintf("grpc.health.v1.%s", *service),
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Println("status", resp.Status)
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
