// Copyright 2022 The wampc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/apex/log"
)

// TaskHandler a handler function which execute a task based on parameters
type TaskHandler func(taskParam interface{}) error

// TaskProcessor processing module for implementing a bounded worker pool.
//
// Tasks are routed to a handler based on the type of the task parameter.
type TaskProcessor interface {
	// Submit queue a new task parameter. Blocks while the queue is full.
	Submit(ctxt context.Context, newTaskParam interface{}) error
	// ProcessNewTaskParam process a task parameter in the caller's goroutine
	ProcessNewTaskParam(newTaskParam interface{}) error
	// SetTaskExecutionMap replace the task param to handler mapping
	SetTaskExecutionMap(newMap map[reflect.Type]TaskHandler) error
	// AddToTaskExecutionMap add a new entry to the task param to handler mapping
	AddToTaskExecutionMap(theType reflect.Type, handler TaskHandler) error
	// StartEventLoop start the worker goroutines
	StartEventLoop(wg *sync.WaitGroup) error
	// StopEventLoop stop the worker goroutines. Queued tasks are dropped.
	StopEventLoop() error
}

// ErrProcessorStopped returned when submitting to a stopped TaskProcessor
var ErrProcessorStopped = fmt.Errorf("task processor stopped")

// taskPoolProcessorImpl implement TaskProcessor with N workers sharing one queue
type taskPoolProcessorImpl struct {
	Component
	name         string
	workerNum    int
	newTasks     chan interface{}
	mapLock      sync.RWMutex
	executionMap map[reflect.Type]TaskHandler
	opCtxt       context.Context
	opCancel     context.CancelFunc
}

// GetNewTaskProcessorInstance get instance of TaskProcessor with a single worker
func GetNewTaskProcessorInstance(
	ctxt context.Context, name string, taskBuffer int,
) (TaskProcessor, error) {
	return GetNewTaskPoolProcessorInstance(ctxt, name, taskBuffer, 1)
}

// GetNewTaskPoolProcessorInstance get instance of TaskProcessor with workerNum workers
func GetNewTaskPoolProcessorInstance(
	ctxt context.Context, name string, taskBuffer int, workerNum int,
) (TaskProcessor, error) {
	if workerNum < 1 {
		return nil, fmt.Errorf("[TP %s] worker count must be positive: %d", name, workerNum)
	}
	if taskBuffer < 0 {
		return nil, fmt.Errorf("[TP %s] task buffer can't be negative: %d", name, taskBuffer)
	}
	logTags := log.Fields{
		"module": "common", "component": "task-processor", "instance": name,
	}
	opCtxt, cancel := context.WithCancel(ctxt)
	return &taskPoolProcessorImpl{
		Component:    Component{LogTags: logTags},
		name:         name,
		workerNum:    workerNum,
		newTasks:     make(chan interface{}, taskBuffer),
		executionMap: make(map[reflect.Type]TaskHandler),
		opCtxt:       opCtxt,
		opCancel:     cancel,
	}, nil
}

// Submit submit a new task parameter for processing
func (p *taskPoolProcessorImpl) Submit(ctxt context.Context, newTaskParam interface{}) error {
	select {
	case <-p.opCtxt.Done():
		return ErrProcessorStopped
	default:
	}
	select {
	case p.newTasks <- newTaskParam:
		return nil
	case <-p.opCtxt.Done():
		return ErrProcessorStopped
	case <-ctxt.Done():
		return ctxt.Err()
	}
}

// SetTaskExecutionMap update the task param to execution mapping
func (p *taskPoolProcessorImpl) SetTaskExecutionMap(newMap map[reflect.Type]TaskHandler) error {
	log.WithFields(p.LogTags).Debug("Changing task execution mapping")
	p.mapLock.Lock()
	defer p.mapLock.Unlock()
	p.executionMap = make(map[reflect.Type]TaskHandler)
	for k, v := range newMap {
		p.executionMap[k] = v
	}
	return nil
}

// AddToTaskExecutionMap add a new entry to the task param to execution mapping
func (p *taskPoolProcessorImpl) AddToTaskExecutionMap(theType reflect.Type, handler TaskHandler) error {
	log.WithFields(p.LogTags).Debugf("Appending to task execution mapping for %s", theType)
	p.mapLock.Lock()
	defer p.mapLock.Unlock()
	p.executionMap[theType] = handler
	return nil
}

// ProcessNewTaskParam process a new task param
//
// A panic within the handler is recovered and returned as an error.
func (p *taskPoolProcessorImpl) ProcessNewTaskParam(newTaskParam interface{}) error {
	p.mapLock.RLock()
	theHandler, ok := p.executionMap[reflect.TypeOf(newTaskParam)]
	mapSize := len(p.executionMap)
	p.mapLock.RUnlock()
	if mapSize == 0 {
		return fmt.Errorf("[TP %s] No task execution mapping set", p.name)
	}
	if !ok {
		return fmt.Errorf(
			"[TP %s] No matching handler found for %s", p.name, reflect.TypeOf(newTaskParam),
		)
	}
	return RecoverAsError(func() error { return theHandler(newTaskParam) })
}

// StartEventLoop start the worker loops
func (p *taskPoolProcessorImpl) StartEventLoop(wg *sync.WaitGroup) error {
	log.WithFields(p.LogTags).Infof("Starting %d workers", p.workerNum)
	for itr := 0; itr < p.workerNum; itr++ {
		workerTags := p.ExtendLogTags(log.Fields{"worker": itr})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer log.WithFields(workerTags).Debug("Worker loop exiting")
			for {
				select {
				case <-p.opCtxt.Done():
					return
				case newTaskParam := <-p.newTasks:
					if err := p.ProcessNewTaskParam(newTaskParam); err != nil {
						log.WithError(err).WithFields(workerTags).Error("Failed to process new task param")
					}
				}
			}
		}()
	}
	return nil
}

// StopEventLoop stop the task param processing workers
func (p *taskPoolProcessorImpl) StopEventLoop() error {
	log.WithFields(p.LogTags).Info("Stopping event loop")
	p.opCancel()
	return nil
}
