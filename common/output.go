package common

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/JeffreyRichter/enum/enum"
)

var eOutputMessageType = outputMessageType(0)

// outputMessageType defines the nature of the output, ex: progress report, run summary, or error
type outputMessageType uint8

func (outputMessageType) Init() outputMessageType     { return outputMessageType(0) } // simple print, allowed to float up
func (outputMessageType) Info() outputMessageType     { return outputMessageType(1) } // simple print, allowed to float up
func (outputMessageType) Warn() outputMessageType     { return outputMessageType(2) } // simple print, allowed to float up
func (outputMessageType) EndOfJob() outputMessageType { return outputMessageType(3) } // (may) exit after printing
func (outputMessageType) Error() outputMessageType    { return outputMessageType(4) } // indicate fatal error, exit right after

func (outputMessageType) ListObject() outputMessageType  { return outputMessageType(5) }
func (outputMessageType) ListSummary() outputMessageType { return outputMessageType(6) }

func (o outputMessageType) String() string {
	return enum.StringInt(o, reflect.TypeOf(o))
}

// defines the output and how it should be handled
type outputMessage struct {
	msgContent string
	msgType    outputMessageType
	exitCode   ExitCode // only for when the application is meant to exit after printing (i.e. Error or Final)
}

func (m outputMessage) shouldExitProcess() bool {
	return m.msgType == eOutputMessageType.Error() ||
		(m.msgType == eOutputMessageType.EndOfJob() && !(m.exitCode == EExitCode.NoExit()))
}

// used for output types that are not simple strings, such as progress and init
// a given format(text,json) is passed in, and the appropriate string is returned
type OutputBuilder func(OutputFormat) string

// -------------------------------------- JSON templates -------------------------------------- //
// used to help formatting of JSON outputs

func GetJsonStringFromTemplate(template interface{}) string {
	jsonOutput, err := json.Marshal(template)
	PanicIfErr(err)

	return string(jsonOutput)
}

// defines the general output template when the format is set to json
type jsonOutputTemplate struct {
	TimeStamp      time.Time
	MessageType    string
	MessageContent string // a simple string for INFO and ERROR, a serialized JSON for INIT, EXIT
}

func newJsonOutputTemplate(messageType outputMessageType, messageContent string) *jsonOutputTemplate {
	return &jsonOutputTemplate{TimeStamp: time.Now(), MessageType: messageType.String(), MessageContent: messageContent}
}

type InitMsgJsonTemplate struct {
	LogFileLocation string
	JobID           string
}

func GetStandardInitOutputBuilder(jobID string, logFileLocation string) OutputBuilder {
	return func(format OutputFormat) string {
		if format == EOutputFormat.Json() {
			return GetJsonStringFromTemplate(InitMsgJsonTemplate{
				JobID:           jobID,
				LogFileLocation: logFileLocation,
			})
		}

		var sb strings.Builder
		sb.WriteString("\nJob " + jobID + " has started\n")
		if logFileLocation != "" {
			sb.WriteString("Log file is located at: " + logFileLocation)
		}
		sb.WriteString("\n")
		return sb.String()
	}
}
