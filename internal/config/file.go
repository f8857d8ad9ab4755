package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML overlay. Keys left out keep their current values.
type fileConfig struct {
	Scoring scoringFile `toml:"scoring"`
	Video   struct {
		Retries *int `toml:"retries"`
	} `toml:"video"`
	Questions struct {
		Count *int `toml:"count"`
	} `toml:"questions"`
}

type scoringFile struct {
	CenterBand         *float64 `toml:"center_band"`
	UprightMin         *float64 `toml:"upright_min"`
	UprightMax         *float64 `toml:"upright_max"`
	PosturePenalty     *float64 `toml:"posture_penalty"`
	EyeContactPenalty  *float64 `toml:"eye_contact_penalty"`
	PostureRecovery    *float64 `toml:"posture_recovery"`
	EyeContactRecovery *float64 `toml:"eye_contact_recovery"`
	Gaze               struct {
		Left  *float64 `toml:"left"`
		Right *float64 `toml:"right"`
		Up    *float64 `toml:"up"`
		Down  *float64 `toml:"down"`
	} `toml:"gaze"`
}

// applyFile overlays path onto cfg. It reports whether the file was read.
func applyFile(cfg *Config, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		return false, err
	}

	var file fileConfig
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return false, fmt.Errorf("parse config %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return false, fmt.Errorf("config %q: unknown key %q", path, undecoded[0].String())
	}

	s := &cfg.Scoring
	setFloat(&s.CenterBand, file.Scoring.CenterBand)
	setFloat(&s.UprightMin, file.Scoring.UprightMin)
	setFloat(&s.UprightMax, file.Scoring.UprightMax)
	setFloat(&s.PosturePenalty, file.Scoring.PosturePenalty)
	setFloat(&s.EyeContactPenalty, file.Scoring.EyeContactPenalty)
	setFloat(&s.PostureRecovery, file.Scoring.PostureRecovery)
	setFloat(&s.EyeContactRecovery, file.Scoring.EyeContactRecovery)
	setFloat(&s.Gaze.Left, file.Scoring.Gaze.Left)
	setFloat(&s.Gaze.Right, file.Scoring.Gaze.Right)
	setFloat(&s.Gaze.Up, file.Scoring.Gaze.Up)
	setFloat(&s.Gaze.Down, file.Scoring.Gaze.Down)

	if r := file.Video.Retries; r != nil && *r >= 0 {
		cfg.Video.Retries = *r
	}
	if n := file.Questions.Count; n != nil && *n > 0 {
		cfg.Questions.Count = *n
	}
	return true, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
