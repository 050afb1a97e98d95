// Package registry implements the channel/bundle/process registry that spec
// §1 names as an external collaborator of the detector: build-time
// declaration of the fixed process set and the named channels/bundles
// between them, frozen and validated before launch. Grounded on pilot.c's
// PI_CreateProcess/PI_CreateChannel/PI_CreateBundle/PI_StartAll sequence.
package registry

import (
	"fmt"

	"github.com/vburojevic/pilot/internal/domain"
)

// Registry is the frozen, validated configuration of a process graph.
type Registry struct {
	processes []domain.ProcessDescriptor
	channels  []domain.ChannelDescriptor
	bundles   []domain.BundleDescriptor
	frozen    bool
}

// New returns an empty, mutable registry.
func New() *Registry {
	return &Registry{}
}

// AddProcess declares a user process and returns its rank.
func (r *Registry) AddProcess(name string, argument int) (int, error) {
	if r.frozen {
		return 0, fmt.Errorf("registry: cannot add process %q after Freeze", name)
	}
	rank := len(r.processes)
	r.processes = append(r.processes, domain.ProcessDescriptor{Rank: rank, Name: name, Argument: argument})
	return rank, nil
}

// AddChannel declares a unidirectional channel between two already-declared
// ranks and returns its channel id (starting at 1).
func (r *Registry) AddChannel(name string, producer, consumer int) (int, error) {
	if r.frozen {
		return 0, fmt.Errorf("registry: cannot add channel %q after Freeze", name)
	}
	if err := r.checkRank(producer); err != nil {
		return 0, err
	}
	if err := r.checkRank(consumer); err != nil {
		return 0, err
	}
	if producer == consumer {
		return 0, fmt.Errorf("registry: channel %q cannot connect a process to itself", name)
	}
	id := len(r.channels) + 1
	r.channels = append(r.channels, domain.ChannelDescriptor{ID: id, Name: name, Producer: producer, Consumer: consumer})
	return id, nil
}

// AddBundle declares a named grouping of channels sharing a common endpoint
// and returns its bundle id (starting at 1).
func (r *Registry) AddBundle(name string, usage domain.BundleUsage, endpoint int, memberChannelIDs []int) (int, error) {
	if r.frozen {
		return 0, fmt.Errorf("registry: cannot add bundle %q after Freeze", name)
	}
	if err := r.checkRank(endpoint); err != nil {
		return 0, err
	}
	if len(memberChannelIDs) == 0 {
		return 0, fmt.Errorf("registry: bundle %q has no members", name)
	}
	for _, cid := range memberChannelIDs {
		ch, err := r.channelByID(cid)
		if err != nil {
			return 0, fmt.Errorf("registry: bundle %q: %w", name, err)
		}
		switch usage {
		case domain.UsageSelect, domain.UsageGather:
			if ch.Consumer != endpoint {
				return 0, fmt.Errorf("registry: bundle %q: channel %q does not terminate at endpoint %d", name, ch.Name, endpoint)
			}
		case domain.UsageBroadcast:
			if ch.Producer != endpoint {
				return 0, fmt.Errorf("registry: bundle %q: channel %q does not originate at endpoint %d", name, ch.Name, endpoint)
			}
		default:
			return 0, fmt.Errorf("registry: bundle %q: unknown usage %q", name, usage)
		}
	}
	id := len(r.bundles) + 1
	r.bundles = append(r.bundles, domain.BundleDescriptor{
		ID: id, Name: name, Usage: usage, Members: append([]int(nil), memberChannelIDs...), Endpoint: endpoint,
	})
	return id, nil
}

// Freeze locks the registry against further declarations. The detector and
// engine only ever see a frozen registry.
func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) checkRank(rank int) error {
	if rank < 0 || rank >= len(r.processes) {
		return fmt.Errorf("registry: rank %d is not a declared process", rank)
	}
	return nil
}

func (r *Registry) channelByID(id int) (domain.ChannelDescriptor, error) {
	if id < 1 || id > len(r.channels) {
		return domain.ChannelDescriptor{}, fmt.Errorf("channel id %d out of range", id)
	}
	return r.channels[id-1], nil
}

// NumProcesses returns the number of declared user processes.
func (r *Registry) NumProcesses() int { return len(r.processes) }

// NumChannels returns the number of declared channels.
func (r *Registry) NumChannels() int { return len(r.channels) }

// NumBundles returns the number of declared bundles.
func (r *Registry) NumBundles() int { return len(r.bundles) }

// Process returns the descriptor for rank.
func (r *Registry) Process(rank int) domain.ProcessDescriptor { return r.processes[rank] }

// Processes returns all process descriptors, in rank order.
func (r *Registry) Processes() []domain.ProcessDescriptor { return r.processes }

// Channel returns the descriptor for channel id (1-based).
func (r *Registry) Channel(id int) domain.ChannelDescriptor { return r.channels[id-1] }

// Channels returns all channel descriptors, in declaration order.
func (r *Registry) Channels() []domain.ChannelDescriptor { return r.channels }

// Bundle returns the descriptor for bundle id (1-based).
func (r *Registry) Bundle(id int) domain.BundleDescriptor { return r.bundles[id-1] }

// Bundles returns all bundle descriptors, in declaration order.
func (r *Registry) Bundles() []domain.BundleDescriptor { return r.bundles }

// ChannelByName looks up a channel's id by its declared name.
func (r *Registry) ChannelByName(name string) (int, error) {
	for _, ch := range r.channels {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return 0, fmt.Errorf("registry: no channel named %q", name)
}

// BundleByName looks up a bundle's id by its declared name.
func (r *Registry) BundleByName(name string) (int, error) {
	for _, b := range r.bundles {
		if b.Name == name {
			return b.ID, nil
		}
	}
	return 0, fmt.Errorf("registry: no bundle named %q", name)
}
