package resource

import (
	"github.com/fluxcd/rgcomposer/pkg/kv"
)

// Container is one entry of a workload's containers.
type Container struct {
	Name      string               `json:"name"`
	Image     string               `json:"image"`
	Ports     []ContainerPort      `json:"ports"`
	Env       []kv.EnvVar          `json:"env"`
	Resources ResourceRequirements `json:"resources"`
}

// ContainerPort is a port a container exposes. Port, when set, is the
// port a Service in the group should publish it on.
type ContainerPort struct {
	ContainerPort Int    `json:"containerPort"`
	Port          Int    `json:"port"`
	Protocol      string `json:"protocol"`
}

type ResourceRequirements struct {
	Requests ResourceList `json:"requests"`
	Limits   ResourceList `json:"limits"`
}

type ResourceList struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

func (c Container) Fields() Fields {
	ports := make([]Fields, 0, len(c.Ports))
	for _, p := range c.Ports {
		ports = append(ports, Fields{
			{"containerPort", p.ContainerPort.Value()},
			{"port", p.Port.Value()},
			{"protocol", p.Protocol},
		})
	}
	env := make([]Fields, 0, len(c.Env))
	for _, e := range c.Env {
		env = append(env, Fields{{"name", e.Name}, {"value", e.Value}})
	}
	return Fields{
		{"name", c.Name},
		{"image", c.Image},
		{"ports", ports},
		{"env", env},
		{"resources", Fields{
			{"requests", c.Resources.Requests.Fields()},
			{"limits", c.Resources.Limits.Fields()},
		}},
	}
}

func (l ResourceList) Fields() Fields {
	return Fields{{"cpu", l.CPU}, {"memory", l.Memory}}
}

func containerFields(cs []Container) []Fields {
	out := make([]Fields, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Fields())
	}
	return out
}
