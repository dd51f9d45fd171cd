package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

func certcollectCommand(ctx context.Context, argv []string, streams ioStreams) error {
	set := flag.NewFlagSet("certcollect", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		outFlag     = set.String("out", "", "Write the PEM chain to this file (defaults to stdout).")
		timeoutFlag = set.Duration("timeout", 10*time.Second, "Connection budget.")
		portFlag    = set.String("port", "443", "Port when the argument has none.")
	)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: reflex certcollect [flags] <host[:port]>")
		fmt.Fprintln(streams.err, "\nConnects over TLS and prints the presented certificate chain as PEM.")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if set.NArg() != 1 {
		set.Usage()
		return errors.New("certcollect requires a host")
	}

	target := normalizeTarget(set.Arg(0), *portFlag)
	chain, err := collectChain(ctx, target, *timeoutFlag)
	if err != nil {
		return err
	}

	var dst io.Writer = streams.out
	if *outFlag != "" {
		f, err := os.Create(*outFlag)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		dst = f
	}

	for i, cert := range chain {
		fmt.Fprintf(dst, "# %d: subject=%s issuer=%s notAfter=%s\n",
			i, cert.Subject, cert.Issuer, cert.NotAfter.UTC().Format(time.RFC3339))
		if err := pem.Encode(dst, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
			return err
		}
	}
	if *outFlag != "" {
		fmt.Fprintf(streams.out, "collected %d certificates from %s\n", len(chain), target)
	}
	return nil
}

// normalizeTarget strips a scheme prefix and appends the default port when
// the argument carries none.
func normalizeTarget(arg, defaultPort string) string {
	arg = strings.TrimSpace(arg)
	for _, prefix := range []string{"https://", "tls://"} {
		arg = strings.TrimPrefix(arg, prefix)
	}
	if idx := strings.IndexByte(arg, '/'); idx >= 0 {
		arg = arg[:idx]
	}
	if _, _, err := net.SplitHostPort(arg); err != nil {
		arg = net.JoinHostPort(arg, defaultPort)
	}
	return arg
}

// collectChain dials the target and returns the presented chain. Verification
// is disabled on purpose: collecting the chain of a host with a broken or
// self-signed certificate is the main use case.
func collectChain(ctx context.Context, target string, timeout time.Duration) ([]*x509.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    &tls.Config{InsecureSkipVerify: true},
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("no certificates presented by %s", target)
	}
	return state.PeerCertificates, nil
}
