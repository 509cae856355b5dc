package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latchlab/latchd/internal/latch/access"
	"github.com/latchlab/latchd/internal/wire"
)

var (
	provisionIn       string
	provisionOut      string
	provisionCapacity int
	provisionDoors    int
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Build a device memory image from an access list",
	Long: `Provision packs a YAML access list into the device memory layout:
the descriptor followed by one 5-byte blob per record slot, unused
slots free.

The access list holds one entry per credential:

  records:
    - pin: "1234"
      doors: [0, 1]
    - card: "5550123"
      doors: [0]
    - pin: "0042"
      card: "5550123"
      doors: [1]

An entry with both a pin and a card provisions a combined credential:
the door opens only for that card followed by that pin.`,
	RunE: runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().StringVarP(&provisionIn, "in", "i", "", "access list YAML")
	provisionCmd.Flags().StringVarP(&provisionOut, "out", "o", "", "image output path")
	provisionCmd.Flags().IntVar(&provisionCapacity, "capacity", 64, "record slots in the image")
	provisionCmd.Flags().IntVar(&provisionDoors, "doors", 1, "door count in the descriptor")
	_ = provisionCmd.MarkFlagRequired("in")
	_ = provisionCmd.MarkFlagRequired("out")
}

func runProvision(cmd *cobra.Command, args []string) error {
	if provisionCapacity < 1 || provisionCapacity > 0xFFFF {
		return fmt.Errorf("capacity %d out of range 1..65535", provisionCapacity)
	}
	if provisionDoors < 1 || provisionDoors > 4 {
		return fmt.Errorf("doors %d out of range 1..4", provisionDoors)
	}

	recs, err := access.ReadProvisionFile(provisionIn)
	if err != nil {
		return err
	}
	if len(recs) > provisionCapacity {
		return fmt.Errorf("%d records exceed the %d-slot capacity", len(recs), provisionCapacity)
	}

	slots := make([]access.Record, provisionCapacity)
	copy(slots, recs)

	img, err := wire.AppendImage(nil, wire.DeviceDescriptor{
		Major:            wire.ProtocolMajor,
		Minor:            wire.ProtocolMinor,
		NumDoors:         uint8(provisionDoors),
		NumAccessRecords: uint16(provisionCapacity),
	}, slots)
	if err != nil {
		return err
	}
	if err := os.WriteFile(provisionOut, img, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes, %d of %d slots provisioned\n",
		provisionOut, len(img), len(recs), provisionCapacity)
	return nil
}
