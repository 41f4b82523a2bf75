// Package backup reads and writes the per-asset crash-recovery record:
//
//	<amount>, <lotReferencePrice>, <pricePaid>, <stateOrdinal>
//	...
//	Reference Price: <value>
//	Last Transaction Price: <value>
package backup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// ErrMalformedRecord is returned for any backup that cannot be decoded exactly.
var ErrMalformedRecord = errors.New("malformed backup record")

const (
	referencePrefix = "Reference Price: "
	lastTxPrefix    = "Last Transaction Price: "
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode writes rec in the backup text format.
func Encode(w io.Writer, rec *domain.BackupRecord) error {
	bw := bufio.NewWriter(w)
	for _, lot := range rec.Lots {
		fmt.Fprintf(bw, "%s, %s, %s, %d\n",
			formatFloat(lot.Amount),
			formatFloat(lot.ReferencePrice),
			formatFloat(lot.PricePaid),
			lot.State.Ordinal(),
		)
	}
	fmt.Fprintf(bw, "%s%s\n", referencePrefix, formatFloat(rec.ReferencePrice))
	fmt.Fprintf(bw, "%s%s\n", lastTxPrefix, formatFloat(rec.PriceSinceLastTx))
	return bw.Flush()
}

// Marshal returns the encoded form of rec.
func Marshal(rec *domain.BackupRecord) []byte {
	var buf bytes.Buffer
	_ = Encode(&buf, rec) // writes to a bytes.Buffer cannot fail
	return buf.Bytes()
}

// Decode parses a backup record. Both price lines are required and must not be
// negative; a zero price is kept and renewed on the next tick. Every lot line
// must carry four well-formed fields with a positive amount and positive
// prices. Nothing is defaulted.
func Decode(r io.Reader) (*domain.BackupRecord, error) {
	rec := &domain.BackupRecord{}
	var haveRef, haveLastTx bool

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, referencePrefix):
			if haveRef {
				return nil, fmt.Errorf("%w: line %d: duplicate reference price", ErrMalformedRecord, lineNo)
			}
			v, err := parseNonNegative(strings.TrimPrefix(line, referencePrefix))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: reference price: %v", ErrMalformedRecord, lineNo, err)
			}
			rec.ReferencePrice, haveRef = v, true
		case strings.HasPrefix(line, lastTxPrefix):
			if haveLastTx {
				return nil, fmt.Errorf("%w: line %d: duplicate last transaction price", ErrMalformedRecord, lineNo)
			}
			v, err := parseNonNegative(strings.TrimPrefix(line, lastTxPrefix))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: last transaction price: %v", ErrMalformedRecord, lineNo, err)
			}
			rec.PriceSinceLastTx, haveLastTx = v, true
		default:
			if haveRef || haveLastTx {
				return nil, fmt.Errorf("%w: line %d: lot after price lines", ErrMalformedRecord, lineNo)
			}
			lot, err := parseLot(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
			}
			rec.Lots = append(rec.Lots, lot)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !haveRef {
		return nil, fmt.Errorf("%w: missing reference price", ErrMalformedRecord)
	}
	if !haveLastTx {
		return nil, fmt.Errorf("%w: missing last transaction price", ErrMalformedRecord)
	}
	return rec, nil
}

// Unmarshal decodes a backup held in memory.
func Unmarshal(data []byte) (*domain.BackupRecord, error) {
	return Decode(bytes.NewReader(data))
}

func parseLot(line string) (domain.PurchaseLot, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return domain.PurchaseLot{}, fmt.Errorf("lot has %d fields, want 4", len(fields))
	}
	var nums [3]float64
	for i := range nums {
		v, err := parsePrice(fields[i])
		if err != nil {
			return domain.PurchaseLot{}, fmt.Errorf("lot field %d: %v", i+1, err)
		}
		if v <= 0 {
			return domain.PurchaseLot{}, fmt.Errorf("lot field %d: %v is not positive", i+1, v)
		}
		nums[i] = v
	}
	ord, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return domain.PurchaseLot{}, fmt.Errorf("lot state: %v", err)
	}
	state, err := domain.StateFromOrdinal(ord)
	if err != nil {
		return domain.PurchaseLot{}, err
	}
	return domain.PurchaseLot{
		Amount:         nums[0],
		ReferencePrice: nums[1],
		PricePaid:      nums[2],
		State:          state,
	}, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func parseNonNegative(s string) (float64, error) {
	v, err := parsePrice(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%v is negative", v)
	}
	return v, nil
}
