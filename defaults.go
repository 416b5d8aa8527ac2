package main

import "os"

func DefaultGatewayAddress() string {
	gateway_addr := os.Getenv("ADAPTIVA_WEB_PORT")
	if gateway_addr != "" {
		return gateway_addr
	}
	return ":8080"
}
