package rtt

// RegisterRttCallback subscribes cb to every inbound frame whose "service"
// field matches service, replacing any previous subscriber for that service.
func (s *Service) RegisterRttCallback(service string, cb func(payload string)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers[service] = cb
}

// DeregisterRttCallback removes the subscriber for service, if any.
func (s *Service) DeregisterRttCallback(service string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subscribers, service)
}

// DeregisterAllRttCallbacks removes every subscriber.
func (s *Service) DeregisterAllRttCallbacks() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = make(map[string]func(string))
}
