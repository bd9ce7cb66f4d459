package utils

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/twmb/murmur3"
)

func HashString(s string) uint64 {
	hash := murmur3.New64()
	_, err := hash.Write([]byte(s))
	if err != nil {
		panic(err)
	}
	return hash.Sum64()
}

// Fingerprint is a short hex rendering of HashString, safe to put in keys
// where the input itself (an API key) must not appear.
func Fingerprint(s string) string {
	return strconv.FormatUint(HashString(s), 16)
}

func ReadTermsFile(filePath string) ([]types.Term, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadTerms(file)
}

// ReadTerms reads one term per line, stripping surrounding whitespace and
// skipping blank lines.
func ReadTerms(r io.Reader) ([]types.Term, error) {
	scanner := bufio.NewScanner(r)

	var result []types.Term
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result = append(result, types.Term(line))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
