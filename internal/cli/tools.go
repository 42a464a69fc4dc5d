package cli

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/vidresolve/internal/decrypt"
	"github.com/alvarorichard/vidresolve/internal/manifest"
	"github.com/alvarorichard/vidresolve/internal/packer"
	"github.com/alvarorichard/vidresolve/internal/util"
)

func newUnpackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack [file]",
		Short: "Unpack an eval(function(p,a,c,k,e,d)) script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			in = strings.TrimRight(in, "\r\n")
			if !packer.IsPacked(in) {
				return packer.ErrNotPacked
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), packer.Unpack(in))
			return err
		},
	}
}

func newPackCommand() *cobra.Command {
	var radix int
	cmd := &cobra.Command{
		Use:   "pack [file]",
		Short: "Pack a script, producing fixtures for the unpacker",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out, err := packer.Pack(strings.TrimRight(in, "\n"), radix)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().IntVar(&radix, "radix", 62, "token radix (2-62)")
	return cmd
}

type cipherOptions struct {
	password string
	salt     string
	keySize  int
}

func (o *cipherOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.password, "password", "p", "", "passphrase")
	f.StringVar(&o.salt, "salt", "", "explicit 8 byte salt, hex encoded")
	f.IntVar(&o.keySize, "key-size", decrypt.DefaultKeySize, "AES key size in bytes (16, 24 or 32)")
	_ = cmd.MarkFlagRequired("password")
}

func (o *cipherOptions) saltBytes() ([]byte, error) {
	if o.salt == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(o.salt)
	if err != nil {
		return nil, errors.Wrap(err, "bad --salt")
	}
	return b, nil
}

func newDecryptCommand() *cobra.Command {
	opts := &cipherOptions{}
	cmd := &cobra.Command{
		Use:   "decrypt [file]",
		Short: "Decrypt an OpenSSL salted AES payload (base64)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			salt, err := opts.saltBytes()
			if err != nil {
				return err
			}
			plain, err := decrypt.DecryptWithOptions(
				decrypt.Payload{Ciphertext: strings.TrimSpace(in), Salt: salt},
				opts.password,
				decrypt.Options{KeySize: opts.keySize},
			)
			if err != nil {
				return err
			}
			util.Debug("decrypted", "bytes", len(plain))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), plain)
			return err
		},
	}
	opts.register(cmd)
	return cmd
}

func newEncryptCommand() *cobra.Command {
	opts := &cipherOptions{}
	var detached bool
	cmd := &cobra.Command{
		Use:   "encrypt [file]",
		Short: "Encrypt text into an OpenSSL salted AES payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			salt, err := opts.saltBytes()
			if err != nil {
				return err
			}
			p, err := decrypt.Encrypt(strings.TrimRight(in, "\n"), opts.password, salt, !detached, decrypt.Options{KeySize: opts.keySize})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if detached {
				if _, err := fmt.Fprintf(w, "salt: %s\n", hex.EncodeToString(p.Salt)); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(w, p.Ciphertext)
			return err
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&detached, "detached", false, "keep the salt out of the ciphertext (no Salted__ header)")
	return cmd
}

func newManifestCommand() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "manifest [file]",
		Short: "Parse an HLS master playlist into ordered variants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			u, err := url.Parse(base)
			if err != nil || !u.IsAbs() {
				return errors.Errorf("--base must be an absolute URL, got %q", base)
			}
			res := manifest.Parse(in, u)
			if res.Empty() && !res.IsMedia {
				return errors.New("no variants in playlist")
			}
			return printManifest(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "URL the playlist was fetched from")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}
