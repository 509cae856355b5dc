package wire

import (
	"fmt"

	"github.com/latchlab/latchd/internal/latch/access"
)

// A memory image is the descriptor followed by NumAccessRecords record
// blobs: the exact bytes the device's record memory holds. The
// provision and inspect tools read and write this layout.

// AppendImage appends a full memory image to b.
func AppendImage(b []byte, d DeviceDescriptor, recs []access.Record) ([]byte, error) {
	if int(d.NumAccessRecords) != len(recs) {
		return nil, fmt.Errorf("wire: descriptor claims %d records, got %d", d.NumAccessRecords, len(recs))
	}
	b = AppendDescriptor(b, d)
	for _, rec := range recs {
		b = AppendAccessRecord(b, rec)
	}
	return b, nil
}

// DecodeImage parses a full memory image.
func DecodeImage(b []byte) (DeviceDescriptor, []access.Record, error) {
	d, err := DecodeDescriptor(b)
	if err != nil {
		return DeviceDescriptor{}, nil, err
	}
	b = b[DescriptorLen:]

	recs := make([]access.Record, 0, d.NumAccessRecords)
	for i := 0; i < int(d.NumAccessRecords); i++ {
		rec, err := DecodeAccessRecord(b)
		if err != nil {
			return DeviceDescriptor{}, nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
		b = b[AccessRecordLen:]
	}
	return d, recs, nil
}
