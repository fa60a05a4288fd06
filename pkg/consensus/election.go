package consensus

func (n *Node) runCandidate() {
	n.mu.Lock()
	n.currentTerm++
	n.votedFor = n.id
	if err := n.haltOnPersistFailureLocked(n.persistLocked()); err != nil {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	n.resetElectionDeadlineLocked()
	deadline := n.electionDeadline
	lastIdx := n.log.LastIndex()
	lastTerm := n.log.TermAt(lastIdx)
	peers := n.cluster.OtherIDs()
	gen := n.generation
	majority := n.cluster.QuorumSize()
	n.mu.Unlock()

	votes := 1 // counts self

	for _, peerID := range peers {
		peerID := peerID
		go func() {
			ctx, cancel := ctxWithTimeout(n.cfg.RPCTimeout)
			defer cancel()
			reply, err := n.transport.RequestVote(ctx, n.id, peerID, RequestVoteArgs{
				Term:         term,
				CandidateID:  n.id,
				LastLogIndex: lastIdx,
				LastLogTerm:  lastTerm,
			})
			if err != nil {
				return
			}

			n.mu.Lock()
			defer n.mu.Unlock()
			if n.generation != gen || n.role != Candidate || n.currentTerm != term {
				return
			}
			if reply.Term > n.currentTerm {
				n.becomeFollowerLocked(reply.Term)
				return
			}
			if reply.VoteGranted {
				votes++
				if votes >= majority {
					n.becomeLeaderLocked()
				}
			}
		}()
	}

	select {
	case <-n.stopCh:
		return
	case <-timeAfter(deadline):
		// Either we won (role changed to Leader and the outer loop will
		// pick that up), lost to a higher term (role changed to
		// Follower), or nobody reached majority: fall through to
		// re-dispatch, which starts a fresh election if still Candidate.
	}
}

// HandleRequestVote implements the RequestVote receiver rules (§4.4).
func (n *Node) HandleRequestVote(args RequestVoteArgs) RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}
	if args.Term > n.currentTerm {
		n.becomeFollowerLocked(args.Term)
	}

	lastIdx := n.log.LastIndex()
	lastTerm := n.log.TermAt(lastIdx)
	upToDate := args.LastLogTerm > lastTerm || (args.LastLogTerm == lastTerm && args.LastLogIndex >= lastIdx)

	if (n.votedFor == "" || n.votedFor == args.CandidateID) && upToDate {
		n.votedFor = args.CandidateID
		// The vote is not externally observable until it is durable (I6):
		// a failed persist must not be reported as a granted vote.
		if err := n.haltOnPersistFailureLocked(n.persistLocked()); err != nil {
			return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
		}
		n.resetElectionDeadlineLocked()
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: true}
	}
	return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
}
