package access

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoCredential = errors.New("access: record needs a pin, a card, or both")
	ErrNoDoors      = errors.New("access: record grants no doors")
	ErrBadDoor      = errors.New("access: door id out of range")
)

// maxDoorID is bounded by the 4-bit door mask in the record layout.
const maxDoorID = 3

// provisionFile is the on-disk access list schema:
//
//	records:
//	  - pin: "1234"
//	    doors: [0, 1]
//	  - card: "5550123"
//	    doors: [0]
//	  - pin: "0042"
//	    card: "5550123"
//	    doors: [1]
type provisionFile struct {
	Records []provisionRecord `yaml:"records"`
}

type provisionRecord struct {
	PIN   string  `yaml:"pin"`
	Card  string  `yaml:"card"`
	Doors []uint8 `yaml:"doors"`
}

// LoadProvision parses a YAML access list into records. An entry with
// only a pin or only a card provisions that credential type; an entry
// with both provisions a combined card+pin credential under the folded
// key.
func LoadProvision(r io.Reader) ([]Record, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f provisionFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse access list: %w", err)
	}

	recs := make([]Record, 0, len(f.Records))
	for i, pr := range f.Records {
		rec, err := pr.record()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ReadProvisionFile loads an access list from path.
func ReadProvisionFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open access list: %w", err)
	}
	defer f.Close()
	return LoadProvision(f)
}

func (pr provisionRecord) record() (Record, error) {
	var rec Record
	var pin, card uint32

	if pr.PIN != "" {
		v, err := PackPIN(pr.PIN)
		if err != nil {
			return Record{}, err
		}
		pin = v
		rec.Type |= TypePIN
	}
	if pr.Card != "" {
		v, err := ParseCard(pr.Card)
		if err != nil {
			return Record{}, err
		}
		card = v
		rec.Type |= TypeCard
	}

	switch rec.Type {
	case TypePIN:
		rec.Key = pin
	case TypeCard:
		rec.Key = card
	case TypePINAndCard:
		rec.Key = CombineKey(card, pin)
	default:
		return Record{}, ErrNoCredential
	}

	for _, d := range pr.Doors {
		if d > maxDoorID {
			return Record{}, fmt.Errorf("door %d: %w", d, ErrBadDoor)
		}
		rec.Doors |= 1 << d
	}
	if rec.Doors == 0 {
		return Record{}, ErrNoDoors
	}
	return rec, nil
}
