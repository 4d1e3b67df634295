// Command token mints a service token for a chat gateway or other API caller.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/mmynk/splitledger/internal/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	var service string
	var ttl time.Duration
	secret := os.Getenv("AUTH_SECRET")

	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&service, "service", "chat-gateway", "name of the calling service")
	flagSet.DurationVar(&ttl, "ttl", 0, "token lifetime; 0 never expires")
	flagSet.StringVar(&secret, "secret", secret, "signing secret (default: $AUTH_SECRET)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if secret == "" {
		return errors.New("no signing secret: set AUTH_SECRET or pass --secret")
	}

	token, err := auth.NewJWTManager(secret, ttl).Generate(service)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
