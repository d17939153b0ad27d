package common

import (
	"fmt"
	"os"
	"sync/atomic"
)

// only one instance of the lifecycle manager should exist per process
var lcm = func() (lcmgr *lifecycleMgr) {
	lcmgr = &lifecycleMgr{
		msgQueue:     make(chan outputMessage, 1000),
		outputFormat: EOutputFormat.Text(),
	}

	// the lifecycle manager is the only one doing output to the console
	go lcmgr.processOutputMessage()

	return
}()

// create a public interface so that consumers outside of this package can refer to the lifecycle manager
// but they would not be able to instantiate one
type LifecycleMgr interface {
	Init(OutputBuilder)                                // let the caller know the run has started and initial information like log location
	Info(string)                                       // simple print, allowed to float up
	Warn(string)                                       // simple print, allowed to float up
	Error(string)                                      // print to the console and exit with failure
	Exit(OutputBuilder, ExitCode)                      // indicates successful execution exit after printing, allow user to specify exit code
	SurrenderControl()                                 // give up control, this should never return
	RegisterCloseFunc(func())                          // run before the process exits, to release the terminal region and close logs
	SetOutputFormat(OutputFormat)                      // change the output format of the entire application
	GetEnvironmentVariable(EnvironmentVariable) string // get the environment variable or its default value
}

func GetLifecycleMgr() LifecycleMgr {
	return lcm
}

type lifecycleMgr struct {
	msgQueue     chan outputMessage
	outputFormat OutputFormat
	closeFunc    atomic.Value // of func()
}

func (lcm *lifecycleMgr) SetOutputFormat(format OutputFormat) {
	lcm.outputFormat = format
}

func (lcm *lifecycleMgr) RegisterCloseFunc(closeFunc func()) {
	lcm.closeFunc.Store(closeFunc)
}

func (lcm *lifecycleMgr) Init(o OutputBuilder) {
	lcm.msgQueue <- outputMessage{
		msgContent: o(lcm.outputFormat),
		msgType:    eOutputMessageType.Init(),
	}
}

func (lcm *lifecycleMgr) Info(msg string) {
	lcm.msgQueue <- outputMessage{
		msgContent: msg,
		msgType:    eOutputMessageType.Info(),
	}
}

func (lcm *lifecycleMgr) Warn(msg string) {
	lcm.msgQueue <- outputMessage{
		msgContent: msg,
		msgType:    eOutputMessageType.Warn(),
	}
}

func (lcm *lifecycleMgr) Error(msg string) {
	// all errors with exit code EExitCode.Error()
	lcm.msgQueue <- outputMessage{
		msgContent: msg,
		msgType:    eOutputMessageType.Error(),
		exitCode:   EExitCode.Error(),
	}

	// stall forever until the success message is printed and program exits
	lcm.SurrenderControl()
}

func (lcm *lifecycleMgr) Exit(o OutputBuilder, applicationExitCode ExitCode) {
	messageContent := ""
	if o != nil {
		messageContent = o(lcm.outputFormat)
	}

	lcm.msgQueue <- outputMessage{
		msgContent: messageContent,
		msgType:    eOutputMessageType.EndOfJob(),
		exitCode:   applicationExitCode,
	}

	if applicationExitCode != EExitCode.NoExit() {
		// stall forever until the success message is printed and program exits
		lcm.SurrenderControl()
	}
}

// this is used when a commandline tool should stop triggering any output;
// the caller hands the console over to the lifecycle manager for good
func (lcm *lifecycleMgr) SurrenderControl() {
	// remain blocked until exit is called
	select {}
}

func (lcm *lifecycleMgr) GetEnvironmentVariable(env EnvironmentVariable) string {
	return GetEnvironmentVariable(env)
}

func (lcm *lifecycleMgr) processOutputMessage() {
	// this function constantly pulls out message to output
	// and pass them onto the right handler based on the output format
	for {
		msg := <-lcm.msgQueue
		switch lcm.outputFormat {
		case EOutputFormat.Json():
			lcm.processJSONOutput(msg)
		case EOutputFormat.Text():
			lcm.processTextOutput(msg)
		case EOutputFormat.None():
			lcm.processNoneOutput(msg)
		default:
			panic("unimplemented output format")
		}
	}
}

func (lcm *lifecycleMgr) checkAndTriggerExit(msg outputMessage) {
	if !msg.shouldExitProcess() {
		return
	}
	if closeFunc, ok := lcm.closeFunc.Load().(func()); ok && closeFunc != nil {
		closeFunc()
	}
	os.Exit(int(msg.exitCode))
}

func (lcm *lifecycleMgr) processNoneOutput(msg outputMessage) {
	// exits still honor their code; all other outputs are swallowed
	lcm.checkAndTriggerExit(msg)
}

func (lcm *lifecycleMgr) processJSONOutput(msg outputMessage) {
	// simply output the json message
	// we assume the msgContent is already formatted correctly
	fmt.Println(GetJsonStringFromTemplate(newJsonOutputTemplate(msg.msgType, msg.msgContent)))

	lcm.checkAndTriggerExit(msg)
}

func (lcm *lifecycleMgr) processTextOutput(msg outputMessage) {
	switch msg.msgType {
	case eOutputMessageType.Error():
		// simply print and quit
		// if no message is intended, avoid adding new lines
		if msg.msgContent != "" {
			fmt.Println("\n" + msg.msgContent)
		}
	case eOutputMessageType.Warn():
		fmt.Println("WARN: " + msg.msgContent)
	default:
		// simply print, the float-up message types carry no decoration
		if msg.msgContent != "" {
			fmt.Println(msg.msgContent)
		}
	}

	lcm.checkAndTriggerExit(msg)
}

// captures the common logic of exiting if there's an expected error
func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}
