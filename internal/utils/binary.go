package utils

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ReadBinary reads a raw little endian array of T.
func ReadBinary[T any](filename string) ([]T, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	numElements := int(fileInfo.Size()) / binary.Size(new(T))
	data := make([]T, numElements)

	if err := binary.Read(file, binary.LittleEndian, &data); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func WriteBinary[T any](filename string, data []T) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := binary.Write(file, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
