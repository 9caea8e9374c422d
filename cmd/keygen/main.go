package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"sealed_socket/internal/cryptographic/asymmetric"
	"sealed_socket/internal/protocol/keys"
)

func main() {
	driver := pflag.StringP("driver", "d", asymmetric.RSADriver,
		"asymmetric driver ("+strings.Join(asymmetric.Drivers(), ", ")+")")
	bits := pflag.UintP("bits", "b", 2048, "key size in bits")
	out := pflag.StringP("out", "o", "", "write <out>.key and <out>.pub instead of printing")
	pflag.Parse()

	pair, err := keys.Generate(*driver, *bits)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Printf("# private key (server key)\n%s\n\n# public key (client encryption.asymmetric.key)\n%s\n",
			pair.PrivateKey, pair.PublicKey)
		return
	}

	if err := os.WriteFile(*out+".key", []byte(strings.TrimSpace(pair.PrivateKey)+"\n"), 0o600); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out+".pub", []byte(strings.TrimSpace(pair.PublicKey)+"\n"), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s.key and %s.pub\n", *out, *out)
}
