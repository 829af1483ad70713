package fleet

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/memberlist"
)

// NodeMeta é o metadado anunciado por cada worker via SWIM
type NodeMeta struct {
	WorkerName string `json:"name"`
	Workload   uint32 `json:"workload"`
	State      string `json:"state"`
}

// Member é um nó do fleet com seu metadado decodificado
type Member struct {
	NodeName string   `json:"node"`
	Addr     string   `json:"addr"`
	Meta     NodeMeta `json:"meta"`
}

// FleetEvents implementa EventDelegate para callback de eventos do memberlist
type FleetEvents struct {
	nodeName string
}

// NotifyJoin é chamado quando um nó se junta ao fleet
func (e *FleetEvents) NotifyJoin(n *memberlist.Node) {
	if n.Name != e.nodeName {
		log.Printf("[FLEET] Nó %s (%s) se juntou ao fleet", n.Name, n.Address())
	}
}

// NotifyLeave é chamado quando um nó deixa o fleet
func (e *FleetEvents) NotifyLeave(n *memberlist.Node) {
	log.Printf("[FLEET] Nó %s deixou o fleet", n.Name)
}

// NotifyUpdate é chamado quando metadados de um nó são atualizados
func (e *FleetEvents) NotifyUpdate(n *memberlist.Node) {
	log.Printf("[FLEET] Nó %s foi atualizado", n.Name)
}

// metaDelegate anuncia o NodeMeta local; não usa mensagens de usuário
type metaDelegate struct {
	mutex sync.RWMutex
	meta  NodeMeta
}

func (d *metaDelegate) NodeMeta(limit int) []byte {
	d.mutex.RLock()
	meta := d.meta
	d.mutex.RUnlock()

	data, err := encodeMeta(meta, limit)
	if err != nil {
		log.Printf("[FLEET] Erro ao codificar metadado: %v", err)
		return nil
	}
	return data
}

func (d *metaDelegate) NotifyMsg([]byte)                           {}
func (d *metaDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *metaDelegate) LocalState(join bool) []byte                { return nil }
func (d *metaDelegate) MergeRemoteState(buf []byte, join bool)     {}

func (d *metaDelegate) setState(state string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.meta.State = state
}

// encodeMeta codifica o metadado respeitando o limite do memberlist,
// truncando o nome do worker se necessário
func encodeMeta(meta NodeMeta, limit int) ([]byte, error) {
	for {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}
		if len(data) <= limit {
			return data, nil
		}
		if meta.WorkerName == "" {
			return nil, fmt.Errorf("metadata of %d bytes exceeds limit %d", len(data), limit)
		}
		excess := len(data) - limit
		if excess > len(meta.WorkerName) {
			excess = len(meta.WorkerName)
		}
		meta.WorkerName = meta.WorkerName[:len(meta.WorkerName)-excess]
	}
}

// MembershipManager gerencia o memberlist e fornece interface simples
type MembershipManager struct {
	ml       *memberlist.Memberlist
	nodeName string
	delegate *metaDelegate

	updateCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// MembershipConfig configuração para criar o membership
type MembershipConfig struct {
	NodeName   string   // nome único do nó; vazio gera <worker>-<uuid>
	WorkerName string   // nome anunciado no metadado
	Workload   uint32   // carga máxima anunciada
	BindAddr   string   // endereço para bind (ex: "0.0.0.0")
	BindPort   int      // porta SWIM (padrão 7946, 0 escolhe uma livre)
	Seeds      []string // lista de seeds para join inicial
}

// NewMembershipManager cria um novo gerenciador de membership usando SWIM
func NewMembershipManager(config MembershipConfig) (*MembershipManager, error) {
	nodeName := config.NodeName
	if nodeName == "" {
		nodeName = fmt.Sprintf("%s-%s", config.WorkerName, uuid.New().String()[:8])
	}

	delegate := &metaDelegate{meta: NodeMeta{
		WorkerName: config.WorkerName,
		Workload:   config.Workload,
		State:      "Disconnected",
	}}

	cfg := memberlist.DefaultLANConfig()
	cfg.Name = nodeName
	cfg.BindAddr = config.BindAddr
	cfg.BindPort = config.BindPort
	cfg.AdvertisePort = config.BindPort
	cfg.Delegate = delegate
	cfg.Events = &FleetEvents{nodeName: nodeName}

	// Workers mudam pouco de estado; reduz tráfego de push/pull
	cfg.PushPullInterval = 30 * time.Second
	cfg.ProbeTimeout = 1 * time.Second
	cfg.ProbeInterval = 5 * time.Second

	ml, err := memberlist.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar memberlist: %w", err)
	}

	manager := &MembershipManager{
		ml:       ml,
		nodeName: nodeName,
		delegate: delegate,
		updateCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	go manager.publishLoop()

	if len(config.Seeds) > 0 {
		// Filtra o próprio endereço dos seeds
		localAddr := ml.LocalNode().Address()
		validSeeds := make([]string, 0, len(config.Seeds))
		for _, seed := range config.Seeds {
			if seed != localAddr && seed != nodeName {
				validSeeds = append(validSeeds, seed)
			}
		}

		if len(validSeeds) > 0 {
			joinCount, err := ml.Join(validSeeds)
			if err != nil {
				log.Printf("[FLEET] Aviso: erro ao juntar-se aos seeds %v: %v", validSeeds, err)
			} else {
				log.Printf("[FLEET] Juntou-se a %d nós seeds", joinCount)
			}
		}
	}

	return manager, nil
}

// UpdateState anuncia o novo estado do worker local
func (m *MembershipManager) UpdateState(state string) error {
	m.delegate.setState(state)
	if err := m.ml.UpdateNode(5 * time.Second); err != nil {
		return fmt.Errorf("erro ao anunciar estado: %w", err)
	}
	return nil
}

// PublishState anuncia o estado sem bloquear; mudanças próximas são agrupadas
// e o último estado vence
func (m *MembershipManager) PublishState(state string) {
	m.delegate.setState(state)
	select {
	case m.updateCh <- struct{}{}:
	default:
	}
}

func (m *MembershipManager) publishLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.updateCh:
			if err := m.ml.UpdateNode(5 * time.Second); err != nil {
				log.Printf("[FLEET] Erro ao anunciar estado: %v", err)
			}
		}
	}
}

// Members retorna todos os membros vivos, incluindo este nó
func (m *MembershipManager) Members() []Member {
	nodes := m.ml.Members()
	members := make([]Member, 0, len(nodes))

	for _, node := range nodes {
		member := Member{NodeName: node.Name, Addr: node.Address()}
		if len(node.Meta) > 0 {
			if err := json.Unmarshal(node.Meta, &member.Meta); err != nil {
				log.Printf("[FLEET] Metadado inválido de %s: %v", node.Name, err)
			}
		}
		members = append(members, member)
	}

	return members
}

// GetMemberCount retorna o número total de membros (incluindo este nó)
func (m *MembershipManager) GetMemberCount() int {
	return m.ml.NumMembers()
}

// GetNodeName retorna o nome deste nó
func (m *MembershipManager) GetNodeName() string {
	return m.nodeName
}

// GetLocalAddr retorna o endereço local do memberlist
func (m *MembershipManager) GetLocalAddr() string {
	return m.ml.LocalNode().Address()
}

// JoinNode tenta adicionar um novo nó ao fleet
func (m *MembershipManager) JoinNode(nodeAddr string) error {
	joinCount, err := m.ml.Join([]string{nodeAddr})
	if err != nil {
		return fmt.Errorf("erro ao conectar ao nó %s: %w", nodeAddr, err)
	}

	log.Printf("[FLEET] Conectou-se a %d nós via %s", joinCount, nodeAddr)
	return nil
}

// Leave faz este nó deixar o fleet gracefully
func (m *MembershipManager) Leave() error {
	if err := m.ml.Leave(5 * time.Second); err != nil {
		return fmt.Errorf("erro ao deixar o fleet: %w", err)
	}
	return nil
}

// Shutdown desliga o memberlist completamente
func (m *MembershipManager) Shutdown() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if err := m.ml.Shutdown(); err != nil {
		return fmt.Errorf("erro ao desligar memberlist: %w", err)
	}
	return nil
}

// GetStats retorna estatísticas do memberlist
func (m *MembershipManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"node_name":     m.nodeName,
		"total_members": m.ml.NumMembers(),
		"local_addr":    m.ml.LocalNode().Address(),
		"members":       m.Members(),
	}
}
