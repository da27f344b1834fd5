package fileutil

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// osRename and copyFile are variables so tests can make the commit fail at
// each step.
var (
	osRename = os.Rename
	copyFile = CopyFile
)

// AtomicPair writes two files that must be replaced together, such as the
// index and the data file of a table database.
//
// Both files are first written to temporaries next to their destinations.
// Commit then renames them into place, keeping a backup of the existing first
// file so that a failure between the two renames can be rolled back.
type AtomicPair struct {
	First, Second *os.File

	firstPath, secondPath string
	committed             bool
}

// CreateAtomicPair opens the temporary files for firstPath and secondPath.
func CreateAtomicPair(firstPath, secondPath string) (*AtomicPair, error) {
	first, err := createTemp(firstPath)
	if err != nil {
		return nil, err
	}
	second, err := createTemp(secondPath)
	if err != nil {
		first.Close()
		os.Remove(first.Name())
		return nil, err
	}
	return &AtomicPair{
		First:      first,
		Second:     second,
		firstPath:  firstPath,
		secondPath: secondPath,
	}, nil
}

func createTemp(path string) (*os.File, error) {
	name := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	return f, nil
}

// Commit replaces both destinations with the temporaries.
//
// If it fails, the destinations are left as they were before the call
// whenever possible. The only exception is a failure to restore the backup of
// the first file, reported with the backup path so it can be restored by
// hand.
func (p *AtomicPair) Commit() error {
	if p.committed {
		return fmt.Errorf("files %s and %s already committed", p.firstPath, p.secondPath)
	}
	p.committed = true

	firstTemp, secondTemp := p.First.Name(), p.Second.Name()
	if err := p.closeTemps(); err != nil {
		p.removeTemps()
		return err
	}

	backup := ""
	if _, err := os.Stat(p.firstPath); err == nil {
		backup = fmt.Sprintf("%s.%s.bak", p.firstPath, uuid.NewString())
		if err := copyFile(p.firstPath, backup); err != nil {
			os.Remove(backup)
			p.removeTemps()
			return fmt.Errorf("failed to back up %s: %w", p.firstPath, err)
		}
	}

	if err := osRename(firstTemp, p.firstPath); err != nil {
		if backup != "" {
			os.Remove(backup)
		}
		p.removeTemps()
		return fmt.Errorf("failed to replace %s: %w", p.firstPath, err)
	}

	if err := osRename(secondTemp, p.secondPath); err != nil {
		os.Remove(secondTemp)
		if backup == "" {
			os.Remove(p.firstPath)
			return fmt.Errorf("failed to replace %s: %w", p.secondPath, err)
		}
		if rerr := osRename(backup, p.firstPath); rerr != nil {
			return fmt.Errorf("failed to replace %s: %w; restoring %s from %s also failed (%v), restore it manually",
				p.secondPath, err, p.firstPath, backup, rerr)
		}
		return fmt.Errorf("failed to replace %s: %w", p.secondPath, err)
	}

	if backup != "" {
		os.Remove(backup)
	}
	return nil
}

// Abort discards the temporaries. It does nothing after Commit.
func (p *AtomicPair) Abort() {
	if p.committed {
		return
	}
	p.committed = true
	p.closeTemps()
	p.removeTemps()
}

func (p *AtomicPair) closeTemps() error {
	err1 := p.First.Close()
	err2 := p.Second.Close()
	if err1 != nil {
		return fmt.Errorf("failed to close %s: %w", p.First.Name(), err1)
	}
	if err2 != nil {
		return fmt.Errorf("failed to close %s: %w", p.Second.Name(), err2)
	}
	return nil
}

func (p *AtomicPair) removeTemps() {
	os.Remove(p.First.Name())
	os.Remove(p.Second.Name())
}
