package gauge

const SampleSchema = `{
  "type": "object",
  "properties": {
    "seq": { "type": "integer" },
    "ts": { "type": "string" },
    "roll": { "type": "number" },
    "pitch": { "type": "number" },
    "checksum_ok": { "type": "boolean" },
    "frame_hex": { "type": "string" }
  },
  "required": ["roll", "pitch", "checksum_ok"]
}`

const TransformSchema = `{
  "type": "object",
  "properties": {
    "transforms": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "timestamp": { "type": "object" },
          "parent_frame_id": { "type": "string" },
          "child_frame_id": { "type": "string" },
          "translation": { "type": "object" },
          "rotation": { "type": "object" }
        }
      }
    }
  }
}`

const LogSchema = `{
  "type": "object",
  "properties": {
    "timestamp": { "type": "object" },
    "level": { "type": "integer" },
    "message": { "type": "string" },
    "name": { "type": "string" },
    "file": { "type": "string" },
    "line": { "type": "integer" }
  }
}`

type Config struct {
	WSAddr         string
	Name           string
	SampleTopic    string
	TransformTopic string
	LogTopic       string
	ParentFrameID  string
	FrameID        string
	SendBuf        int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:         "127.0.0.1:8765",
		Name:           "tiltd",
		SampleTopic:    "tilt/sample",
		TransformTopic: "/tf",
		LogTopic:       "/log",
		ParentFrameID:  "world",
		FrameID:        "ship",
		SendBuf:        64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WSAddr == "" {
		c.WSAddr = d.WSAddr
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.SampleTopic == "" {
		c.SampleTopic = d.SampleTopic
	}
	if c.TransformTopic == "" {
		c.TransformTopic = d.TransformTopic
	}
	if c.LogTopic == "" {
		c.LogTopic = d.LogTopic
	}
	if c.ParentFrameID == "" {
		c.ParentFrameID = d.ParentFrameID
	}
	if c.FrameID == "" {
		c.FrameID = d.FrameID
	}
	if c.SendBuf <= 0 {
		c.SendBuf = d.SendBuf
	}
	return c
}
