// Command secretgen prints a random token signing secret in .env form.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	n := flag.Int("bytes", 48, "number of random bytes")
	flag.Parse()

	if err := run(os.Stdout, rand.Reader, *n); err != nil {
		logrus.Fatalf("secretgen: %v", err)
	}
}

func run(out io.Writer, src io.Reader, n int) error {
	if n < 32 {
		return errors.New("bytes must be at least 32")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return fmt.Errorf("read random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "IDENTITY_AUTH_JWTSECRET=%s\n", base64.RawURLEncoding.EncodeToString(buf))
	return err
}
