// Package hash provides SHA256 fingerprints of candidate placements so that reports
// from repeated scoring passes can be matched and diffed.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// OptionKey is the identity of a candidate placement, independent of its assigned costs.
type OptionKey struct {
	Name               string
	ShardingType       string
	ComputeKernel      string
	BatchSize          int64
	InputLengths       []float64
	OutputDataTypeSize float64
	InputDist          bool
	OutputDist         bool
	Shapes             [][2]int64
}

// HashOption computes a SHA256 hash of a placement identity.
// Format: `"name"|sharding|kernel|batch|len1,len2|outsize|in,out|r1xc1;r2xc2`.
// The name is quoted so a '|' inside it cannot shift the other sections.
func HashOption(k OptionKey) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(k.Name))
	b.WriteString("|")
	b.WriteString(k.ShardingType)
	b.WriteString("|")
	b.WriteString(k.ComputeKernel)
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(k.BatchSize, 10))
	b.WriteString("|")
	for i, l := range k.InputLengths {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.FormatFloat(l, 'g', -1, 64))
	}
	b.WriteString("|")
	b.WriteString(strconv.FormatFloat(k.OutputDataTypeSize, 'g', -1, 64))
	b.WriteString("|")
	b.WriteString(strconv.FormatBool(k.InputDist))
	b.WriteString(",")
	b.WriteString(strconv.FormatBool(k.OutputDist))
	b.WriteString("|")
	for i, s := range k.Shapes {
		if i > 0 {
			b.WriteString(";")
		}
		b.WriteString(strconv.FormatInt(s[0], 10))
		b.WriteString("x")
		b.WriteString(strconv.FormatInt(s[1], 10))
	}

	h := sha256.New()
	h.Write([]byte(b.String()))
	return hex.EncodeToString(h.Sum(nil))
}
