// Command negoexdump decodes a NEGOEX message stream from a file and prints
// the decoded messages.
//
//	negoexdump [-hex] [-reported N] [-v level] [-area list] [-key hex] file
//
// With -hex the file holds hex text; whitespace is ignored. -reported claims
// more bytes than the file holds, as for a capture cut short. -area limits
// logging to a comma separated list of areas (stream, message, ber, pku2u,
// kerberos). -key checks VERIFY checksums with an RFC 3961 key.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/kardianos/negoex/checksum"
	"github.com/kardianos/negoex/negoex"
	"github.com/kardianos/negoex/negoexlog"
	"github.com/kardianos/negoex/wire"
)

func main() {
	log := negoexlog.New(os.Stderr)
	if err := run(os.Args[1:], os.Stdout, log); err != nil {
		log.Fatalf("%v", err)
	}
}

type options struct {
	hex      bool
	reported int
	verbose  int
	areas    []negoexlog.Area
	key      string
	keyType  int
	acceptor bool
	file     string
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opt options
	fs := flag.NewFlagSet("negoexdump", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&opt.hex, "hex", false, "input is hex text")
	fs.IntVar(&opt.reported, "reported", 0, "reported stream length, if longer than the input")
	fs.IntVar(&opt.verbose, "v", negoexlog.LevelError, "log verbosity (0-3)")
	fs.Func("area", "comma separated log areas", func(v string) error {
		for _, name := range strings.Split(v, ",") {
			a, err := negoexlog.ParseArea(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			opt.areas = append(opt.areas, a)
		}
		return nil
	})
	fs.StringVar(&opt.key, "key", "", "hex session key for VERIFY checksums")
	fs.IntVar(&opt.keyType, "keytype", int(etypeID.AES256_CTS_HMAC_SHA1_96), "encryption type of -key")
	fs.BoolVar(&opt.acceptor, "acceptor", false, "VERIFY messages come from the acceptor")
	if err := fs.Parse(args); err != nil {
		return opt, err
	}
	if fs.NArg() != 1 {
		return opt, errors.New("usage: negoexdump [-hex] [-reported N] [-v level] [-area list] [-key hex] file")
	}
	opt.file = fs.Arg(0)
	return opt, nil
}

func run(args []string, out io.Writer, log *negoexlog.Logger) error {
	opt, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	log.SetVerbosity(opt.verbose)
	for _, a := range opt.areas {
		log.EnableArea(a)
	}

	data, err := os.ReadFile(opt.file)
	if err != nil {
		return err
	}
	if opt.hex {
		data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return fmt.Errorf("decode hex input: %w", err)
		}
	}
	reported := len(data)
	if opt.reported > reported {
		reported = opt.reported
	}

	cfg := negoex.DefaultConfig()
	cfg.Logger = log
	res := negoex.NewDecoder(cfg).Decode(wire.NewBuffer(data, reported))

	p := &printer{w: out}
	if opt.key != "" {
		kv, err := hex.DecodeString(opt.key)
		if err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
		p.key = &types.EncryptionKey{KeyType: int32(opt.keyType), KeyValue: kv}
		p.usage = checksum.KeyUsageInitiatorChecksum
		if opt.acceptor {
			p.usage = checksum.KeyUsageAcceptorChecksum
		}
	}
	p.result(res)
	return p.err
}
