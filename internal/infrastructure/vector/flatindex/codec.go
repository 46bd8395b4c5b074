package flatindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/mewerton/universal-system/internal/core/domain"
)

const (
	vectorsFile  = "index.vec"
	docstoreFile = "index.docstore.json"
	ledgerFile   = "metadata.json"

	vectorsMagic   = "UVEC"
	vectorsVersion = uint16(1)
	docstoreFormat = 1

	vectorsHeaderSize = 14
	maxDimension      = 1 << 16
)

// errCorrupt marks on-disk state that cannot be decoded into a consistent index.
var errCorrupt = errors.New("corrupt index files")

type docstore struct {
	Version   int               `json:"version"`
	Namespace string            `json:"namespace"`
	Dimension int               `json:"dimension"`
	Fragments []domain.Fragment `json:"fragments"`
}

// readIndex decodes the three index files. A damaged ledger does not invalidate
// the index; it is reported separately and replaced by an empty one.
func readIndex(dir, namespace string) (ix *Index, ledgerErr error, err error) {
	vectors, dim, err := readVectors(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, nil, err
	}
	store, err := readDocstore(filepath.Join(dir, docstoreFile))
	if err != nil {
		return nil, nil, err
	}
	if store.Dimension != dim || len(store.Fragments) != len(vectors) {
		return nil, nil, fmt.Errorf("%w: %d fragments for %d vectors", errCorrupt, len(store.Fragments), len(vectors))
	}

	ix = newIndex(namespace, dim).withFragments(store.Fragments, vectors)
	if len(ix.byID) != ix.Len() {
		return nil, nil, fmt.Errorf("%w: duplicate fragment ids", errCorrupt)
	}
	files, ledgerErr := readLedger(filepath.Join(dir, ledgerFile))
	if ledgerErr != nil && !errors.Is(ledgerErr, errCorrupt) {
		return nil, nil, ledgerErr
	}
	ix.files = files
	return ix, ledgerErr, nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	r := bufio.NewReader(f)

	var header struct {
		Magic   [4]byte
		Version uint16
		Dim     uint32
		Count   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("%w: read header: %v", errCorrupt, err)
	}
	if string(header.Magic[:]) != vectorsMagic || header.Version != vectorsVersion || header.Dim == 0 || header.Dim > maxDimension {
		return nil, 0, fmt.Errorf("%w: bad vector header", errCorrupt)
	}
	// The header is checked against the file size before anything is allocated from it.
	if want := vectorsHeaderSize + int64(header.Count)*int64(header.Dim)*4; info.Size() != want {
		return nil, 0, fmt.Errorf("%w: vector file is %d bytes, header implies %d", errCorrupt, info.Size(), want)
	}

	dim := int(header.Dim)
	vectors := make([][]float32, 0, header.Count)
	buf := make([]byte, 4*dim)
	for i := uint32(0); i < header.Count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("%w: vector %d: %v", errCorrupt, i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vectors = append(vectors, v)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, 0, fmt.Errorf("%w: trailing bytes after vectors", errCorrupt)
	}
	return vectors, dim, nil
}

func writeVectors(path string, dim int, vectors [][]float32) error {
	return writeFile(path, func(w io.Writer) error {
		header := struct {
			Magic   [4]byte
			Version uint16
			Dim     uint32
			Count   uint32
		}{Version: vectorsVersion, Dim: uint32(dim), Count: uint32(len(vectors))}
		copy(header.Magic[:], vectorsMagic)
		if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
			return err
		}
		buf := make([]byte, 4*dim)
		for _, v := range vectors {
			for j, x := range v {
				binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(x))
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func readDocstore(path string) (*docstore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var store docstore
	if err := json.Unmarshal(raw, &store); err != nil {
		return nil, fmt.Errorf("%w: docstore: %v", errCorrupt, err)
	}
	if store.Version != docstoreFormat {
		return nil, fmt.Errorf("%w: docstore version %d", errCorrupt, store.Version)
	}
	return &store, nil
}

func writeDocstore(path string, ix *Index) error {
	return writeFile(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(docstore{
			Version:   docstoreFormat,
			Namespace: ix.namespace,
			Dimension: ix.dim,
			Fragments: ix.fragments,
		})
	})
}

// readLedger returns an empty ledger when the file is missing.
func readLedger(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("%w: ledger: %v", errCorrupt, err)
	}
	return files, nil
}

func writeLedger(path string, files []string) error {
	if files == nil {
		files = []string{}
	}
	return writeFile(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(files)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
