package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/latchlab/latchd/internal/latch/access"
	"github.com/latchlab/latchd/internal/wire"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Print the contents of a device memory image",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	desc, recs, err := wire.DecodeImage(b)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "protocol %d.%d, %d doors, %d record slots\n",
		desc.Major, desc.Minor, desc.NumDoors, desc.NumAccessRecords)

	used := 0
	for i, rec := range recs {
		switch {
		case rec.Invalid:
			used++
			fmt.Fprintf(out, "%4d  invalid slot\n", i)
		case rec.Free():
			continue
		default:
			used++
			fmt.Fprintf(out, "%4d  %-8s  %-12s  doors %s\n",
				i, rec.Type, renderKey(rec), doorList(rec.Doors))
		}
	}
	fmt.Fprintf(out, "%d of %d slots in use\n", used, len(recs))
	return nil
}

// renderKey shows the credential the way it was provisioned: pins as
// the digit string, cards as the card number. A combined key is a fold
// of both and only renders as the raw value.
func renderKey(rec access.Record) string {
	switch rec.Type {
	case access.TypePIN:
		if pin, err := access.UnpackPIN(rec.Key); err == nil {
			return fmt.Sprintf("%q", pin)
		}
	case access.TypeCard:
		return fmt.Sprintf("%d", rec.Key)
	}
	return fmt.Sprintf("0x%08X", rec.Key)
}

func doorList(mask uint8) string {
	var sb strings.Builder
	for d := 0; d < 4; d++ {
		if mask&(1<<d) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", d)
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}
