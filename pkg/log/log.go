/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type LogLevel int

const (
	LogPrefix     = "[go-digitizer] "
	ErrorPrefix   = "[error] "
	WarningPrefix = "[warn] "
	InfoPrefix    = "[info] "
	DebugPrefix   = "[debug] "
	HelpLevels    = "Must be one of: error, warning, info, debug."
)

const (
	ErrorLevel LogLevel = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

var levelMapping = map[string]LogLevel{
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

func (l LogLevel) String() string {
	for name, level := range levelMapping {
		if level == l {
			return name
		}
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

type Logger struct {
	level LogLevel
	*log.Logger
}

var logger = &Logger{
	level:  InfoLevel,
	Logger: log.New(os.Stderr, LogPrefix, log.LstdFlags),
}

func ParseLevel(strLevel string) (LogLevel, error) {
	level, ok := levelMapping[strLevel]
	if !ok {
		return InfoLevel, errors.New("Wrong log level. " + HelpLevels)
	}
	return level, nil
}

func SetLevel(strLevel string) error {
	level, err := ParseLevel(strLevel)
	if err != nil {
		return err
	}
	logger.level = level
	return nil
}

func GetLevel() LogLevel {
	return logger.level
}

// SetOutput redirects all log lines, e.g. to a per-run log file
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

func Init(out io.Writer, strLevel string) {
	logger.SetOutput(out)
	if err := SetLevel(strLevel); err != nil {
		panic(err)
	}
}

func Error(format string, v ...interface{}) {
	if logger.level >= ErrorLevel {
		logger.Println(fmt.Sprintf(ErrorPrefix+format, v...))
	}
}

func Warning(format string, v ...interface{}) {
	if logger.level >= WarningLevel {
		logger.Println(fmt.Sprintf(WarningPrefix+format, v...))
	}
}

func Info(format string, v ...interface{}) {
	if logger.level >= InfoLevel {
		logger.Println(fmt.Sprintf(InfoPrefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if logger.level >= DebugLevel {
		logger.Println(fmt.Sprintf(DebugPrefix+format, v...))
	}
}

// Param writes a "key value" line at info level. The value is always the
// last whitespace separated token of the line so it can be read back by
// ParamValue.
func Param(key string, value interface{}) {
	Info("%s %v", key, value)
}

// ParamValue scans log output for the first line containing key and returns
// the last token of that line.
func ParamValue(r io.Reader, key string) (string, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, InfoPrefix+key+" ") {
			continue
		}
		fields := strings.Fields(line)
		return fields[len(fields)-1], true
	}
	return "", false
}

var levelPrefix = map[LogLevel]string{
	ErrorLevel:   ErrorPrefix,
	WarningLevel: WarningPrefix,
	InfoLevel:    InfoPrefix,
	DebugLevel:   DebugPrefix,
}

type levelWriter LogLevel

func (w levelWriter) Write(p []byte) (int, error) {
	if logger.level >= LogLevel(w) {
		logger.Println(levelPrefix[LogLevel(w)] + strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

// Writer returns a writer that logs every write as one line at level,
// e.g. for access logs of the API server
func Writer(level LogLevel) io.Writer {
	return levelWriter(level)
}
