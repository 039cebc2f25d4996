package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/protocol"
)

// intParam reads a required integer parameter from the query or form body.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return 0, badRequest{msg: fmt.Sprintf("missing parameter %s", name)}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest{msg: fmt.Sprintf("parameter %s must be an integer", name)}
	}
	return n, nil
}

// gameAndPlayer reads the game_id and player_id parameters.
func gameAndPlayer(r *http.Request) (multiplayer.GameID, multiplayer.PlayerID, error) {
	gid, err := intParam(r, protocol.ParamGameID)
	if err != nil {
		return 0, 0, err
	}
	pid, err := intParam(r, protocol.ParamPlayerID)
	if err != nil {
		return 0, 0, err
	}
	return multiplayer.GameID(gid), multiplayer.PlayerID(pid), nil
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	spec := multiplayer.GameSpec{
		Size:            s.cfg.Defaults.Size,
		DuckProbability: s.cfg.Defaults.DuckProbability,
	}

	if r.FormValue(protocol.ParamSize) != "" {
		size, err := intParam(r, protocol.ParamSize)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		spec.Size = size
	}

	dims := s.cfg.Defaults.Dimensions
	if v := r.FormValue(protocol.ParamDimensions); v != "" {
		dims = v
	}
	width, height, err := protocol.ParseDimensions(dims)
	if err != nil {
		s.writeError(w, r, badRequest{msg: err.Error()})
		return
	}
	spec.Width, spec.Height = width, height

	if v := r.FormValue(protocol.ParamDuckProb); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 1 {
			s.writeError(w, r, badRequest{msg: "duck_prob must be a number in [0, 1]"})
			return
		}
		spec.DuckProbability = p
	}

	sum, err := s.reg.Create(spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, protocol.ParamGameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pid, err := s.reg.Register(multiplayer.GameID(gid), r.FormValue(protocol.ParamScreenName))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.RegisterResponse{PlayerID: int(pid)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, protocol.ParamGameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.reg.Status(multiplayer.GameID(gid))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	gid, pid, err := gameAndPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := r.FormValue(protocol.ParamSnapshot)
	if snap != "" {
		if _, err := entris.DecodeSnapshot(snap); err != nil {
			s.writeError(w, r, badRequest{msg: err.Error()})
			return
		}
	}
	n, err := s.reg.Receive(gid, pid, snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.ReceiveResponse{Penalty: n})
}

func (s *Server) handleSendLines(w http.ResponseWriter, r *http.Request) {
	gid, pid, err := gameAndPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := intParam(r, protocol.ParamNumLines)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n < 0 {
		s.writeError(w, r, badRequest{msg: "num_lines must not be negative"})
		return
	}
	if err := s.reg.SendLines(gid, pid, n); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.InfoResponse{Info: protocol.AddedInfo(n, int(pid))})
}

func (s *Server) handleGetParts(w http.ResponseWriter, r *http.Request) {
	gid, pid, err := gameAndPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kinds, err := s.reg.Parts(gid, pid, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]int, len(kinds))
	for i, k := range kinds {
		out[i] = int(k)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	gid, pid, err := gameAndPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.reg.Unregister(gid, pid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info := protocol.DeletedInfo(int(pid))
	if !removed {
		info = protocol.NotFoundInfo(int(pid))
	}
	writeJSON(w, http.StatusOK, protocol.InfoResponse{Info: info})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}
