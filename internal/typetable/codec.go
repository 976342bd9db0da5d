package typetable

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"fortio.org/safecast"
)

// On-disk layout, little-endian, no header and no padding:
//
//	name[129] quantFields:int32
//	  repeated quantFields times:
//	    fieldName[129] format:int32 offset:int32 baseTypeIndex:int32
//
// The descriptor count travels out-of-band: the instrumenter embeds it in
// the call to the runtime loader.

func writeName(w io.Writer, name string) error {
	var buf [nameBytes]byte
	copy(buf[:MaxNameLength], name)
	_, err := w.Write(buf[:])
	return err
}

func readName(r io.Reader) (string, error) {
	var buf [nameBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf[:MaxNameLength]), nil
}

// Write serialises the table.
func Write(w io.Writer, table Table) error {
	for i := range table {
		d := &table[i]
		if err := writeName(w, d.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, d.QuantFields()); err != nil {
			return err
		}
		for _, f := range d.Fields {
			if err := writeName(w, f.Name); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, []int32{int32(f.Format), f.Offset, f.BaseTypeIndex}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Read loads exactly count descriptors. A short read is an error: a
// truncated Type Table cannot be consulted safely.
func Read(r io.Reader, count int) (Table, error) {
	table := make(Table, 0, count)
	for i := 0; i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("type table: descriptor %d: %w", i, err)
		}
		var quant int32
		if err := binary.Read(r, binary.LittleEndian, &quant); err != nil {
			return nil, fmt.Errorf("type table: descriptor %d: %w", i, err)
		}
		if quant < 1 {
			return nil, fmt.Errorf("type table: descriptor %d (%s): field count %d", i, name, quant)
		}
		n, err := safecast.Conv[int](quant)
		if err != nil {
			return nil, fmt.Errorf("type table: descriptor %d (%s): %w", i, name, err)
		}
		d := Descriptor{Name: name, Fields: make([]Field, 0, n)}
		for j := 0; j < n; j++ {
			fieldName, err := readName(r)
			if err != nil {
				return nil, fmt.Errorf("type table: descriptor %d (%s) field %d: %w", i, name, j, err)
			}
			var ints [3]int32
			if err := binary.Read(r, binary.LittleEndian, ints[:]); err != nil {
				return nil, fmt.Errorf("type table: descriptor %d (%s) field %d: %w", i, name, j, err)
			}
			d.Fields = append(d.Fields, Field{
				Name:          fieldName,
				Format:        Format(ints[0]),
				Offset:        ints[1],
				BaseTypeIndex: ints[2],
			})
		}
		table = append(table, d)
	}
	return table, nil
}

// WriteFile writes the table to path, overwriting any previous table.
func WriteFile(path string, table Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load opens and reads a table of count descriptors. Errors here are fatal
// to the runtime caller: without the table no value can be rendered.
func Load(path string, count int) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening Type Table file %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, count)
}
