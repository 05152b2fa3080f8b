// Command willctl drives the will API from a terminal.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type options struct {
	api     string
	secret  string
	key     string
	timeout time.Duration
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.SetFlags(0)
		log.Fatal(err)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}
	root := &cobra.Command{
		Use:           "willctl",
		Short:         "Manage digital wills through the Hera API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("HERA_API_URL", "http://localhost:3000"), "API base URL")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("API_HMAC_SECRET"), "HMAC secret used to sign writes")
	root.PersistentFlags().StringVar(&opts.key, "idempotency-key", "", "idempotency key for writes (random when empty)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "request timeout")

	root.AddCommand(
		readCommands(opts)...,
	)
	root.AddCommand(
		grantorCommands(opts)...,
	)
	root.AddCommand(
		beneficiaryCommands(opts)...,
	)
	root.AddCommand(adminCommands(opts)...)
	return root
}

func (o *options) client() *apiClient {
	return newAPIClient(o.api, o.secret, o.timeout)
}

func (o *options) idempotencyKey() string {
	if o.key != "" {
		return o.key
	}
	return uuid.NewString()
}

// print pretty-prints a JSON response.
func (o *options) print(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(o.out, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(o.out)
	return err
}

func (o *options) get(ctx context.Context, path string) error {
	raw, err := o.client().get(ctx, path)
	if err != nil {
		return err
	}
	return o.print(raw)
}

func (o *options) post(ctx context.Context, method, path string, body interface{}) error {
	raw, err := o.client().write(ctx, method, path, o.idempotencyKey(), body)
	if err != nil {
		return err
	}
	return o.print(raw)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
