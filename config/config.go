package config

import (
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

type Config struct {
	Server     Server
	Mesh       Mesh
	Compositor Compositor
	Labels     Labels
	Animation  Animation
	// 按文件中的顺序排列
	Fluids []Fluid
	Log    Log
}

// Fluid is one [fluids] entry, Value is "Name,#rrggbb".
type Fluid struct {
	Key   string
	Value string
}

type Server struct {
	Addr    string
	Metrics bool
}

type Mesh struct {
	Policy        string
	BaseThickness float64
	Width         float64
	Height        float64
	NX            int
	Fallback      string
	Workers       int
}

type Compositor struct {
	Section     int
	Rotate      bool
	AnnulusOnly bool
	TopDepth    float64
	BottomDepth float64
	Unit        string
	Variable    string
	Workers     int
}

type Labels struct {
	Detail  string
	Plane   string
	Padding float64
	Color   string
}

type Animation struct {
	// 毫秒
	Interval int
}

type Log struct {
	Level string
}

// 颜色值以 # 开头，关闭行内注释
var loadOptions = ini.LoadOptions{IgnoreInlineComment: true}

// Load 读取配置文件，文件不存在时使用默认值
func Load(path string) *Config {
	file, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		log.WithFields(log.Fields{"path": path, "err": err}).Warn("配置文件读取错误，使用默认配置")
		file = ini.Empty()
	}
	return loadCfg(file)
}

// Default 返回默认配置
func Default() *Config {
	return loadCfg(ini.Empty())
}

func loadCfg(file *ini.File) *Config {
	cfg := &Config{
		Server: Server{
			Addr:    file.Section("server").Key("Addr").MustString(":9000"),
			Metrics: file.Section("server").Key("Metrics").MustBool(true),
		},
		Mesh: Mesh{
			Policy:        file.Section("mesh").Key("Policy").MustString("Constant"),
			BaseThickness: file.Section("mesh").Key("BaseThickness").MustFloat64(0.1),
			Width:         file.Section("mesh").Key("Width").MustFloat64(1),
			Height:        file.Section("mesh").Key("Height").MustFloat64(5),
			NX:            file.Section("mesh").Key("NX").MustInt(2),
			Fallback:      file.Section("mesh").Key("Fallback").MustString("#07293E"),
			Workers:       file.Section("mesh").Key("Workers").MustInt(4),
		},
		Compositor: Compositor{
			Section:     file.Section("compositor").Key("Section").MustInt(1),
			Rotate:      file.Section("compositor").Key("Rotate").MustBool(false),
			AnnulusOnly: file.Section("compositor").Key("AnnulusOnly").MustBool(true),
			TopDepth:    file.Section("compositor").Key("TopDepth").MustFloat64(0),
			BottomDepth: file.Section("compositor").Key("BottomDepth").MustFloat64(800),
			Unit:        file.Section("compositor").Key("Unit").MustString("m"),
			Variable:    file.Section("compositor").Key("Variable").MustString("csave"),
			Workers:     file.Section("compositor").Key("Workers").MustInt(4),
		},
		Labels: Labels{
			Detail:  file.Section("labels").Key("Detail").MustString("Medium"),
			Plane:   file.Section("labels").Key("Plane").MustString("yz"),
			Padding: file.Section("labels").Key("Padding").MustFloat64(0.2),
			Color:   file.Section("labels").Key("Color").MustString("#ffffff"),
		},
		Animation: Animation{
			Interval: file.Section("animation").Key("Interval").MustInt(100),
		},
		Log: Log{
			Level: file.Section("log").Key("Level").MustString("info"),
		},
	}

	for _, key := range file.Section("fluids").Keys() {
		cfg.Fluids = append(cfg.Fluids, Fluid{Key: key.Name(), Value: key.String()})
	}
	return cfg
}

// SetupLog 设置日志级别，无法识别时使用 info
func (c *Config) SetupLog() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.WithField("level", c.Log.Level).Warn("日志级别无法识别")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
