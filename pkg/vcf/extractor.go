// Package vcf extracts pharmacogenomic genotype calls from VCF v4.2-style
// text. The extractor is deliberately forgiving: header and malformed lines
// are skipped, missing genotype columns default to homozygous reference, and
// unreadable input yields an empty call set rather than an error.
package vcf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pgx-risk-server/internal/domain"
)

// Upload decoding errors surfaced to transport handlers.
var (
	ErrEmptyFile       = errors.New("empty VCF file")
	ErrInvalidGzip     = errors.New("invalid .vcf.gz file")
	ErrNotUTF8         = errors.New("VCF file must be UTF-8 encoded text")
	ErrUnknownScenario = errors.New("unknown sample scenario")
)

// VCF lines carry at most a handful of sample columns here, but annotation
// INFO fields can run long.
const maxLineBytes = 1 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// Extractor turns raw VCF text into normalized genotype calls.
type Extractor struct{}

// NewExtractor creates a new VCF genotype extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans rawContent for data records and returns one genotype call per
// usable record, in input order. When wanted is non-empty only record ids in
// it are yielded; panel filtering never affects the parse flag. The flag is
// true iff at least one syntactically usable data record was seen.
//
// Extract never fails: garbage input yields (nil, false).
func (e *Extractor) Extract(rawContent []byte, wanted map[string]bool) ([]domain.GenotypeCall, bool) {
	if len(rawContent) == 0 {
		return nil, false
	}

	var calls []domain.GenotypeCall
	usable := 0

	scanner := bufio.NewScanner(bytes.NewReader(rawContent))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 8 {
			fields = strings.Fields(line)
		}
		if len(fields) < 8 {
			continue
		}
		if _, err := strconv.Atoi(fields[1]); err != nil {
			continue
		}
		usable++

		id := fields[2]
		if len(wanted) > 0 && !wanted[id] {
			continue
		}

		ref := strings.ToUpper(fields[3])
		alt := strings.ToUpper(fields[4])
		if i := strings.IndexByte(alt, ','); i >= 0 {
			alt = alt[:i]
		}

		genotype, zygosity := resolveGenotype(gtValue(fields), ref, alt)
		calls = append(calls, domain.GenotypeCall{
			RSID:     id,
			Genotype: genotype,
			Zygosity: zygosity,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, false
	}

	return calls, usable > 0
}

// gtValue locates the GT entry for the first sample column. Records without
// FORMAT/sample columns report an empty value, which resolves as hom-ref.
func gtValue(fields []string) string {
	if len(fields) < 10 {
		return ""
	}
	gtIdx := 0
	for i, key := range strings.Split(fields[8], ":") {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	sample := strings.Split(fields[9], ":")
	if gtIdx >= len(sample) {
		return "0/0"
	}
	return sample[gtIdx]
}

// resolveGenotype maps a GT value through the record's REF/ALT alleles.
// Missing values default to hom-ref; index pairs outside {0, 1} or
// non-numeric values keep the raw token and report unknown zygosity, so the
// resolver can flag rather than guess.
func resolveGenotype(gt, ref, alt string) (string, domain.Zygosity) {
	if gt == "" || gt == "." {
		return domain.NormalizeGenotype(ref, ref), domain.HomRef
	}

	parts := strings.Split(strings.ReplaceAll(gt, "|", "/"), "/")
	if len(parts) != 2 {
		return gt, domain.ZygosityUnknown
	}

	alleles := []string{ref, alt}
	idx := make([]int, 2)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= len(alleles) {
			return gt, domain.ZygosityUnknown
		}
		idx[i] = n
	}

	genotype := domain.NormalizeGenotype(alleles[idx[0]], alleles[idx[1]])
	switch {
	case idx[0] == 0 && idx[1] == 0:
		return genotype, domain.HomRef
	case idx[0] != 0 && idx[1] != 0:
		return genotype, domain.HomAlt
	default:
		return genotype, domain.Het
	}
}

// DecodeUpload turns an uploaded .vcf or .vcf.gz payload into plain text:
// gunzips when the filename or magic bytes say so, strips a UTF-8 BOM, and
// rejects payloads that are empty, corrupt, or not UTF-8.
func DecodeUpload(filename string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	if strings.HasSuffix(strings.ToLower(filename), ".gz") || bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, ErrInvalidGzip
		}
		decompressed, err := io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, ErrInvalidGzip
		}
		data = decompressed
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	return data, nil
}

// LooksLikeVCF reports whether content carries a VCF signature: a
// ##fileformat=VCF declaration or a #CHROM header line.
func LooksLikeVCF(content []byte) bool {
	normalized := strings.TrimSpace(string(bytes.TrimPrefix(content, utf8BOM)))
	return strings.Contains(normalized, "##fileformat=VCF") ||
		strings.Contains(normalized, "\n#CHROM") ||
		strings.HasPrefix(normalized, "#CHROM")
}
