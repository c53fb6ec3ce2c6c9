// qbank-seal obfuscates a plain SQL dump (or pool JSON) into the asset
// format the engine seeds from.
package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"qbank/internal/qcrypt"
)

func main() {
	in := flag.String("in", "", "plain dump file to seal")
	out := flag.String("out", "", "output asset file (e.g. initial_db.enc)")
	key := flag.String("key", "QBANK_SEED_KEY_2025", "obfuscation key")
	flag.Parse()

	if *in == "" || *out == "" {
		flag.Usage()
		os.Exit(2)
	}

	plain, err := os.ReadFile(*in)
	if err != nil {
		log.WithError(err).Fatal("read input")
	}

	if err := os.WriteFile(*out, qcrypt.Encrypt(plain, *key), 0o644); err != nil {
		log.WithError(err).Fatal("write asset")
	}

	log.WithFields(log.Fields{"in": *in, "out": *out, "bytes": len(plain)}).
		Info("asset sealed")
}
