package logging

import "github.com/sirupsen/logrus"

// BaseFields builds the action + config path fields shared by startup log lines.
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields builds the package/route fields shared by proxy request log lines.
func RequestFields(pkg, disposition string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"package":     pkg,
		"disposition": disposition,
		"cache_hit":   cacheHit,
	}
}
