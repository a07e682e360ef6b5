package bench

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomLine returns n random alphanumeric characters.
func RandomLine(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(b)
}

// GenerateDataset writes lines random lines of lineLen characters to path.
func GenerateDataset(path string, lines, lineLen int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	w := bufio.NewWriterSize(f, 1<<20)
	for i := 0; i < lines; i++ {
		_, _ = w.WriteString(RandomLine(rng, lineLen))
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return f.Close()
}
