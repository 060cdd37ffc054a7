package detectors

import (
	"regexp"
	"strings"

	"disruptiq/internal/detector"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

var (
	codeLanguages = []language.Language{
		language.Go, language.Python, language.JavaScript, language.TypeScript,
		language.Java, language.Rust, language.Ruby, language.PHP, language.CSharp,
		language.Shell,
	}
	configLanguages = []language.Language{
		language.JSON, language.YAML, language.Env, language.TOML,
		language.Terraform, language.XML, language.HTML,
	}
	scriptLanguages = []language.Language{language.JavaScript, language.TypeScript, language.Python, language.Go}
)

func withConfig(langs []language.Language) []language.Language {
	out := append([]language.Language(nil), langs...)
	return append(out, configLanguages...)
}

func re(expr string) *regexp.Regexp { return regexp.MustCompile(expr) }

// NetworkSpecs returns the network-surface pattern detectors.
func NetworkSpecs() []PatternSpec {
	return []PatternSpec{
		{
			ID:          "hardcoded_url_v1",
			Type:        signal.TypeHardcodedURL,
			Languages:   withConfig(codeLanguages),
			Severity:    signal.SeverityLow,
			Confidence:  0.6,
			Tags:        []string{"network", "url"},
			Remediation: "Move endpoints into configuration.",
			Rules: []PatternRule{
				{Regex: re(`\bhttps?://[^\s'"<>` + "`" + `)\]}]+`), Detail: "Hardcoded URL %s"},
			},
			Accept: func(url string) bool {
				return !isIgnoredURL(url)
			},
		},
		{
			ID:          "local_ip_v1",
			Type:        signal.TypeLocalIP,
			Languages:   withConfig(codeLanguages),
			Severity:    signal.SeverityLow,
			Confidence:  0.8,
			Tags:        []string{"network", "ip"},
			Remediation: "Use service discovery or configuration instead of private addresses.",
			Rules: []PatternRule{
				{Regex: re(`\b(10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(1[6-9]|2[0-9]|3[0-1])\.\d{1,3}\.\d{1,3})\b`), Group: 1, Detail: "Private network address %s"},
			},
		},
		{
			ID:          "http_call_v1",
			Type:        signal.TypeHTTPCall,
			Languages:   scriptLanguages,
			Severity:    signal.SeverityMedium,
			Confidence:  0.7,
			Tags:        []string{"network", "http"},
			Remediation: "Verify outbound HTTP targets and add timeouts.",
			Rules: []PatternRule{
				{Regex: re(`\b(fetch|axios|requests)\s*\.\s*(get|post|put|delete|patch)\b`), Detail: "Outbound HTTP call %s"},
				{Regex: re(`\bfetch\s*\(`), Detail: "Outbound HTTP call %s"},
				{Regex: re(`\bhttp\.(Get|Post|PostForm|Head|NewRequest(?:WithContext)?)\s*\(`), Detail: "Outbound HTTP call %s"},
			},
		},
		{
			ID:          "port_exposure_v1",
			Type:        signal.TypePortExposure,
			Languages:   scriptLanguages,
			Severity:    signal.SeverityMedium,
			Confidence:  0.7,
			Tags:        []string{"network", "port"},
			Remediation: "Bind to configured ports and restrict interfaces.",
			Rules: []PatternRule{
				{Regex: re(`\b(?:listen|bind|serve)\s*\(\s*(\d{2,5})\b`), Group: 1, Detail: "Server exposes port %s"},
				{Regex: re(`\bListenAndServe(?:TLS)?\s*\(\s*"[^"]*:(\d{2,5})"`), Group: 1, Detail: "Server exposes port %s"},
			},
		},
		{
			ID:          "database_connection_v1",
			Type:        signal.TypeDatabaseConn,
			Languages:   withConfig(codeLanguages),
			Severity:    signal.SeverityMedium,
			Confidence:  0.8,
			Tags:        []string{"database", "network"},
			Remediation: "Load connection strings from a secret store.",
			Rules: []PatternRule{
				{Regex: re(`\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|rediss|amqp|mssql|sqlserver)://[^\s'"` + "`" + `]+`), Detail: "Database connection string %s"},
				{Regex: re(`\b(?:mongoose\.connect|MongoClient|createConnection|psycopg2\.connect|pymysql\.connect|sqlite3\.connect|create_engine)\s*\(`), Detail: "Database client connection %s"},
			},
		},
		{
			ID:          "websocket_v1",
			Type:        signal.TypeWebSocket,
			Languages:   scriptLanguages,
			Severity:    signal.SeverityMedium,
			Confidence:  0.8,
			Tags:        []string{"network", "websocket"},
			Remediation: "Authenticate websocket endpoints and prefer wss://.",
			Rules: []PatternRule{
				{Regex: re(`\bnew\s+WebSocket\s*\(`), Detail: "WebSocket client %s"},
				{Regex: re(`\bwss?://[^\s'"` + "`" + `]+`), Detail: "WebSocket endpoint %s"},
			},
		},
		{
			ID:          "certificate_check_v1",
			Type:        signal.TypeInsecureTLS,
			Languages:   []language.Language{language.JavaScript, language.TypeScript, language.Python},
			Severity:    signal.SeverityHigh,
			Confidence:  0.85,
			Tags:        []string{"network", "tls"},
			Remediation: "Keep certificate verification enabled.",
			Rules: []PatternRule{
				{Regex: re(`\bverify\s*=\s*False\b`), Detail: "Certificate verification disabled: %s"},
				{Regex: re(`\brejectUnauthorized\s*:\s*false\b`), Detail: "Certificate verification disabled: %s"},
				{Regex: re(`NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`), Detail: "Certificate verification disabled: %s"},
			},
		},
		{
			ID:          "cors_policy_v1",
			Type:        signal.TypeCORSWildcard,
			Languages:   withConfig(scriptLanguages),
			Severity:    signal.SeverityMedium,
			Confidence:  0.75,
			Tags:        []string{"network", "cors"},
			Remediation: "Restrict allowed origins.",
			Rules: []PatternRule{
				{Regex: re(`\borigin\s*:\s*['"]\*['"]`), Detail: "Permissive CORS origin %s"},
				{Regex: re(`Access-Control-Allow-Origin['"]?\s*[:,=]\s*['"]\*['"]`), Detail: "Permissive CORS origin %s"},
				{Regex: re(`\bCORS_ORIGIN_ALLOW_ALL\s*=\s*True\b`), Detail: "Permissive CORS origin %s"},
			},
		},
		{
			ID:          "cloud_sdk_v1",
			Type:        signal.TypeCloudSDK,
			Languages:   scriptLanguages,
			Severity:    signal.SeverityMedium,
			Confidence:  0.7,
			Tags:        []string{"cloud", "network"},
			Remediation: "Review cloud credentials and scopes used by this client.",
			Rules: []PatternRule{
				{Regex: re(`\bnew\s+AWS\.[A-Z][A-Za-z0-9]*\s*\(`), Detail: "Cloud SDK client %s"},
				{Regex: re(`\bboto3\.(?:client|resource|Session)\s*\(`), Detail: "Cloud SDK client %s"},
				{Regex: re(`@(?:aws-sdk|google-cloud|azure)/[a-z0-9-]+`), Detail: "Cloud SDK package %s"},
				{Regex: re(`"github\.com/aws/aws-sdk-go(?:-v2)?[^"]*"`), Detail: "Cloud SDK package %s"},
			},
		},
		{
			ID:          "raw_socket_v1",
			Type:        signal.TypeRawSocket,
			Languages:   scriptLanguages,
			Severity:    signal.SeverityLow,
			Confidence:  0.8,
			Tags:        []string{"network", "socket"},
			Remediation: "Prefer a higher level client with timeouts.",
			Rules: []PatternRule{
				{Regex: re(`\bsocket\.socket\s*\(`), Detail: "Raw socket %s"},
				{Regex: re(`\bnew\s+net\.Socket\s*\(`), Detail: "Raw socket %s"},
				{Regex: re(`\bnet\.(?:Dial|DialTimeout|Listen)\s*\(`), Detail: "Raw socket %s"},
			},
		},
	}
}

// isIgnoredURL filters XML/JSON namespace identifiers and loopback URLs.
func isIgnoredURL(url string) bool {
	for _, prefix := range []string{
		"http://www.w3.org/",
		"https://www.w3.org/",
		"http://json-schema.org/",
		"https://json-schema.org/",
		"http://schemas.xmlsoap.org/",
		"http://localhost",
		"http://127.0.0.1",
	} {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

func newPatternDetectors(specs []PatternSpec, dampener *detector.Dampener) []detector.Detector {
	out := make([]detector.Detector, 0, len(specs))
	for _, spec := range specs {
		out = append(out, NewPatternDetector(spec, dampener))
	}
	return out
}
