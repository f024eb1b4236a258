// Package conf loads worker configuration for the execution core from an
// ini file, following the same Load(args)-populates-Cfg pattern the
// teacher engine uses for its mysqld/session sections.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// IsolationLevel is the MVCC policy a worker runs transactions under.
type IsolationLevel string

const (
	IsoSnapshot     IsolationLevel = "SNAPSHOT"
	IsoSerializable IsolationLevel = "SERIALIZABLE"
)

var ConfigPath string

// CommandLineArgs mirrors the teacher's CommandLineArgs shape.
type CommandLineArgs struct {
	ConfigPath string
}

// Cfg holds every option recognized per spec.md §6.4, plus the
// allocator/thread-pool sizing the components need to boot.
type Cfg struct {
	Raw *ini.File

	NodeID      int
	ThreadCount int `default:"8"`

	// §6.4 recognized options
	Caching          bool           `default:"true"`
	CoreBind         bool           `default:"false"`
	ExpertDivision   bool           `default:"true"`
	StepReorder      bool           `default:"false"`
	Indexing         bool           `default:"true"`
	Stealing         bool           `default:"true"`
	DataSize         int            `default:"65536"` // max_bytes for message chunking
	OptPreread       bool           `default:"true"`
	OptValidation    bool           `default:"true"`
	IsoLevel         IsolationLevel `default:"SERIALIZABLE"`
	AbortRerunTimes  int            `default:"3"`

	// allocator sizing
	CellPoolSize     uint32        `default:"1048576"`
	CellBlockSize    uint32        `default:"1024"`
	ValueCellSize    uint32        `default:"64"`
	ValuePoolSize    uint32        `default:"1048576"`

	// execution engine
	StealingStaleness time.Duration `default:"5ms"`
	MsgLockNum        int           `default:"256"`
	ValidationPollInterval time.Duration `default:"2ms"`
	ValidationPollBudget   int           `default:"50"`
}

// NewCfg returns a Cfg populated with defaults, matching the teacher's
// NewCfg() constructor.
func NewCfg() *Cfg {
	return &Cfg{
		Raw:                    ini.Empty(),
		NodeID:                 0,
		ThreadCount:            8,
		Caching:                true,
		ExpertDivision:         true,
		Indexing:               true,
		Stealing:               true,
		DataSize:               65536,
		OptPreread:             true,
		OptValidation:          true,
		IsoLevel:               IsoSerializable,
		AbortRerunTimes:        3,
		CellPoolSize:           1 << 20,
		CellBlockSize:          1024,
		ValueCellSize:          64,
		ValuePoolSize:          1 << 20,
		StealingStaleness:      5 * time.Millisecond,
		MsgLockNum:             256,
		ValidationPollInterval: 2 * time.Millisecond,
		ValidationPollBudget:   50,
	}
}

// Load reads an ini file into Cfg, falling back to defaults for any
// section/key that is absent — the teacher instead fails fast on a
// missing key, but a graph worker should boot from zero configuration
// (an empty file is a common case in tests).
func (cfg *Cfg) Load(args *CommandLineArgs) (*Cfg, error) {
	setHomePath(args)

	if args.ConfigPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(args.ConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("conf: config file %q does not exist", args.ConfigPath)
	}

	parsed, err := ini.Load(args.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("conf: failed to parse %q: %w", args.ConfigPath, err)
	}
	cfg.Raw = parsed

	section := parsed.Section("worker")
	cfg.NodeID = section.Key("node_id").MustInt(cfg.NodeID)
	cfg.ThreadCount = section.Key("thread_count").MustInt(cfg.ThreadCount)
	cfg.Caching = section.Key("caching").MustBool(cfg.Caching)
	cfg.CoreBind = section.Key("core_bind").MustBool(cfg.CoreBind)
	cfg.ExpertDivision = section.Key("expert_division").MustBool(cfg.ExpertDivision)
	cfg.StepReorder = section.Key("step_reorder").MustBool(cfg.StepReorder)
	cfg.Indexing = section.Key("indexing").MustBool(cfg.Indexing)
	cfg.Stealing = section.Key("stealing").MustBool(cfg.Stealing)
	cfg.DataSize = section.Key("data_size").MustInt(cfg.DataSize)
	cfg.OptPreread = section.Key("opt_preread").MustBool(cfg.OptPreread)
	cfg.OptValidation = section.Key("opt_validation").MustBool(cfg.OptValidation)
	if v := section.Key("iso_level").MustString(string(cfg.IsoLevel)); v == string(IsoSnapshot) {
		cfg.IsoLevel = IsoSnapshot
	} else {
		cfg.IsoLevel = IsoSerializable
	}
	cfg.AbortRerunTimes = section.Key("abort_rerun_times").MustInt(cfg.AbortRerunTimes)

	return cfg, nil
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}
	ConfigPath, _ = filepath.Abs(".")
}
