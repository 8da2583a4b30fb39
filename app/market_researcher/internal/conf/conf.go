package conf

type Bootstrap struct {
	Server   *Server
	Research *Research
}

type Server struct {
	Http *HTTP
}

type HTTP struct {
	Addr    string
	Timeout string
}

type Research struct {
	Llm      *LLM      `json:"llm"`
	Search   *Search   `json:"search"`
	Pipeline *Pipeline `json:"pipeline"`
	Log      *Log      `json:"log"`
}

type LLM struct {
	BaseUrl     string  `json:"base_url"`
	ApiKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Timeout     int32   `json:"timeout"`
}

type Search struct {
	Provider string  `json:"provider"`
	Timeout  int32   `json:"timeout"`
	Serper   *Serper `json:"serper"`
	Tavily   *Tavily `json:"tavily"`
}

type Serper struct {
	ApiKey  string `json:"api_key"`
	BaseUrl string `json:"base_url"`
}

type Tavily struct {
	ApiKey  string `json:"api_key"`
	BaseUrl string `json:"base_url"`
}

type Pipeline struct {
	FailurePolicy   string `json:"failure_policy"`
	MaxSectionChars int32  `json:"max_section_chars"`
	ExcerptCount    int32  `json:"excerpt_count"`
	ExcerptChars    int32  `json:"excerpt_chars"`
	ExcerptTimeout  int32  `json:"excerpt_timeout"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}
