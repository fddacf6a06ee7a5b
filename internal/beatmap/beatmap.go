// Package beatmap parses .osu beatmap files and estimates how much of a map
// a failed play covered.
package beatmap

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pable/go-osu-metrics/internal/model"
)

// ErrMalformedBeatmap is returned for files that cannot be parsed or whose
// hit objects cannot describe a play.
var ErrMalformedBeatmap = errors.New("malformed beatmap")

const fileHeader = "osu file format v"

// HitObject is the part of a hit object line we use.
type HitObject struct {
	X, Y int
	Time int // ms
	Type int
}

// Beatmap is a parsed .osu file.
type Beatmap struct {
	FormatVersion int
	Checksum      string // md5 of the raw file, as the API reports it
	Mode          model.Mode

	Title   string
	Artist  string
	Creator string
	Version string

	HPDrainRate       float64
	CircleSize        float64
	OverallDifficulty float64
	ApproachRate      float64
	SliderMultiplier  float64

	HitObjects []HitObject
}

var modeByIndex = map[int]model.Mode{
	0: model.ModeOsu,
	1: model.ModeTaiko,
	2: model.ModeFruits,
	3: model.ModeMania,
}

// Parse reads a .osu file. Unknown sections and keys are ignored.
func Parse(data []byte) (*Beatmap, error) {
	bm := &Beatmap{
		Checksum: fmt.Sprintf("%x", md5.Sum(data)),
		Mode:     model.ModeOsu,
	}
	// AR defaults to OD on maps older than v8; -1 marks "not set".
	bm.ApproachRate = -1

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		section    string
		sawHeader  bool
		lineNumber int
	)
	for sc.Scan() {
		lineNumber++
		line := strings.TrimSpace(sc.Text())
		if lineNumber == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !sawHeader {
			if !strings.HasPrefix(line, fileHeader) {
				return nil, fmt.Errorf("%w: missing file format header", ErrMalformedBeatmap)
			}
			v, err := strconv.Atoi(strings.TrimPrefix(line, fileHeader))
			if err != nil {
				return nil, fmt.Errorf("%w: bad format version %q", ErrMalformedBeatmap, line)
			}
			bm.FormatVersion = v
			sawHeader = true
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		var err error
		switch section {
		case "General", "Metadata", "Difficulty":
			err = bm.setProperty(section, line)
		case "HitObjects":
			err = bm.addHitObject(line)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedBeatmap, lineNumber, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read beatmap: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedBeatmap)
	}
	if bm.ApproachRate < 0 {
		bm.ApproachRate = bm.OverallDifficulty
	}
	return bm, nil
}

// ParseReader is Parse for streams.
func ParseReader(r io.Reader) (*Beatmap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read beatmap: %w", err)
	}
	return Parse(data)
}

func (bm *Beatmap) setProperty(section, line string) error {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch section {
	case "General":
		if key == "Mode" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("mode %q: %v", value, err)
			}
			m, ok := modeByIndex[n]
			if !ok {
				return fmt.Errorf("unknown mode %d", n)
			}
			bm.Mode = m
		}
	case "Metadata":
		switch key {
		case "Title":
			bm.Title = value
		case "Artist":
			bm.Artist = value
		case "Creator":
			bm.Creator = value
		case "Version":
			bm.Version = value
		}
	case "Difficulty":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s %q: %v", key, value, err)
		}
		switch key {
		case "HPDrainRate":
			bm.HPDrainRate = f
		case "CircleSize":
			bm.CircleSize = f
		case "OverallDifficulty":
			bm.OverallDifficulty = f
		case "ApproachRate":
			bm.ApproachRate = f
		case "SliderMultiplier":
			bm.SliderMultiplier = f
		}
	}
	return nil
}

// addHitObject parses "x,y,time,type,..." and keeps the first four fields.
func (bm *Beatmap) addHitObject(line string) error {
	fields := strings.SplitN(line, ",", 5)
	if len(fields) < 4 {
		return fmt.Errorf("hit object %q: want at least 4 fields", line)
	}
	var vals [4]int
	for i := 0; i < 4; i++ {
		// Some editors write fractional coordinates and times; truncate like the game does.
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return fmt.Errorf("hit object %q: %v", line, err)
		}
		vals[i] = int(f)
	}
	bm.HitObjects = append(bm.HitObjects, HitObject{X: vals[0], Y: vals[1], Time: vals[2], Type: vals[3]})
	return nil
}

// Timeline returns the hit object start times in file order.
func (bm *Beatmap) Timeline() []int {
	out := make([]int, len(bm.HitObjects))
	for i, h := range bm.HitObjects {
		out[i] = h.Time
	}
	return out
}

// ActiveDuration is the time in ms between the first and last hit object.
func (bm *Beatmap) ActiveDuration() int {
	if len(bm.HitObjects) < 2 {
		return 0
	}
	return bm.HitObjects[len(bm.HitObjects)-1].Time - bm.HitObjects[0].Time
}
