package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/nightwatch/nightwatch/pkg/task"
)

type daemonStatus struct {
	Status string `json:"status"`
}

func (s *Server) handleDaemonStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, daemonStatus{Status: s.mgr.StatusString()})
}

func (s *Server) handleDaemonPause(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Stop(false); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemonStatus{Status: s.mgr.StatusString()})
}

func (s *Server) handleDaemonResume(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Start(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemonStatus{Status: s.mgr.StatusString()})
}

func (s *Server) handleDaemonReload(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Reload(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daemonStatus{Status: "reloaded"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.mgr.GetTasks()

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]task.Status, 0, len(tasks))
	for _, name := range names {
		statuses = append(statuses, tasks[name].Status())
	}
	writeJSON(w, http.StatusOK, statuses)
}

type taskRef struct {
	Name string `json:"name"`
}

func (s *Server) handleBulkTaskAction(w http.ResponseWriter, r *http.Request) {
	actionName := r.PathValue("action")
	op, ok := s.taskOp(actionName)
	if !ok {
		s.writeUnknownAction(w, actionName)
		return
	}

	var refs []taskRef
	if err := json.NewDecoder(r.Body).Decode(&refs); err != nil {
		s.writeError(w, err)
		return
	}

	for _, ref := range refs {
		if err := op(ref.Name); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.mgr.GetTask(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Status())
}

type addTasksRequest struct {
	Filename string                 `json:"filename"`
	Tasks    map[string]task.Config `json:"tasks"`
}

func (s *Server) handleAddTasks(w http.ResponseWriter, r *http.Request) {
	var req addTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}

	statuses, err := s.mgr.AddTasks(req.Tasks, req.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	actionName := r.PathValue("action")
	op, ok := s.taskOp(actionName)
	if !ok {
		s.writeUnknownAction(w, actionName)
		return
	}

	name := r.PathValue("name")
	if err := op(name); err != nil {
		s.writeError(w, err)
		return
	}

	t, err := s.mgr.GetTask(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Status())
}

// taskOp resolves a per-task action name from the URL to the manager call.
func (s *Server) taskOp(name string) (func(string) error, bool) {
	switch name {
	case "pause":
		return s.mgr.PauseTask, true
	case "resume":
		return s.mgr.ResumeTask, true
	case "reload":
		return func(taskName string) error {
			_, err := s.mgr.ReloadTask(taskName)
			return err
		}, true
	}
	return nil, false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
