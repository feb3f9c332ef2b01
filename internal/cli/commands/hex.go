package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/alchemy/internal/cli/output"
	intconfig "github.com/leapstack-labs/alchemy/internal/config"
)

// NewHexCommand creates the hex command, used to prepare and inspect seeds.
func NewHexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hex",
		Short: "Encode and decode hex strings",
		Long: `Encode text as lowercase hex, or decode hex back to text.

Seeds are 32 bytes written as 64 hex digits, so 'alchemy hex encode' turns a
32 character passphrase into a seed.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <text>",
		Short: "Encode text as hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := NewCommandContext(cmd).Renderer
			encoded := intconfig.EncodeHex([]byte(args[0]))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]string{"hex": encoded})
			}
			r.Println(encoded)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode hex to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := NewCommandContext(cmd).Renderer
			decoded, err := intconfig.DecodeHex(args[0])
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]string{"text": string(decoded)})
			}
			r.Println(string(decoded))
			return nil
		},
	})

	return cmd
}
