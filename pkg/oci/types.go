package oci

import "time"

// Page is the envelope every list operation returns. It matches the `data` envelope of the
// OCI CLI so cached files stay interchangeable with CLI output.
type Page[T any] struct {
	Data []T `json:"data"`
}

// Items returns the page records, never nil.
func (p Page[T]) Items() []T {
	if p.Data == nil {
		return []T{}
	}

	return p.Data
}

// CapacityTopology is the root of the capacity topology hierarchy.
type CapacityTopology struct {
	ID                 string         `json:"id"                 yaml:"id"`
	DisplayName        string         `json:"displayName"        yaml:"displayName"`
	AvailabilityDomain string         `json:"availabilityDomain" yaml:"availabilityDomain"`
	LifecycleState     LifecycleState `json:"lifecycleState"     yaml:"lifecycleState"`
	RawState           string         `json:"rawLifecycleState"  yaml:"rawLifecycleState"`
}

// HPCIsland groups network blocks inside a capacity topology.
type HPCIsland struct {
	ID             string         `json:"id"                             yaml:"id"`
	TopologyID     string         `json:"computeCapacityTopologyId"      yaml:"computeCapacityTopologyId"`
	LifecycleState LifecycleState `json:"lifecycleState"                 yaml:"lifecycleState"`
	RawState       string         `json:"rawLifecycleState"              yaml:"rawLifecycleState"`
	TotalHostCount int64          `json:"totalComputeBareMetalHostCount" yaml:"totalComputeBareMetalHostCount"`
}

// NetworkBlock groups hosts sharing network locality inside an HPC island.
type NetworkBlock struct {
	ID             string         `json:"id"                             yaml:"id"`
	IslandID       string         `json:"computeHpcIslandId"             yaml:"computeHpcIslandId"`
	LifecycleState LifecycleState `json:"lifecycleState"                 yaml:"lifecycleState"`
	RawState       string         `json:"rawLifecycleState"              yaml:"rawLifecycleState"`
	TotalHostCount int64          `json:"totalComputeBareMetalHostCount" yaml:"totalComputeBareMetalHostCount"`
}

// BareMetalHost is a leaf of the capacity topology. A nil NetworkBlockID means the host is
// not assigned to any network block.
type BareMetalHost struct {
	ID               string         `json:"id"                              yaml:"id"`
	NetworkBlockID   *string        `json:"computeNetworkBlockId"           yaml:"computeNetworkBlockId"`
	IslandID         string         `json:"computeHpcIslandId,omitempty"    yaml:"computeHpcIslandId,omitempty"`
	InstanceID       *string        `json:"instanceId"                      yaml:"instanceId"`
	InstanceShape    string         `json:"instanceShape"                   yaml:"instanceShape"`
	LifecycleState   LifecycleState `json:"lifecycleState"                  yaml:"lifecycleState"`
	RawState         string         `json:"rawLifecycleState"               yaml:"rawLifecycleState"`
	LifecycleDetails *string        `json:"lifecycleDetails,omitempty"      yaml:"lifecycleDetails,omitempty"`
}

// Compartment is an identity compartment; ParentID is empty only for the tenancy root.
type Compartment struct {
	ID             string         `json:"id"             yaml:"id"`
	Name           string         `json:"name"           yaml:"name"`
	Description    string         `json:"description"    yaml:"description"`
	LifecycleState LifecycleState `json:"lifecycleState" yaml:"lifecycleState"`
	ParentID       string         `json:"compartmentId"  yaml:"compartmentId"`
}

// VCN is a virtual cloud network.
type VCN struct {
	ID             string         `json:"id"                yaml:"id"`
	DisplayName    string         `json:"displayName"       yaml:"displayName"`
	CIDRBlocks     []string       `json:"cidrBlocks"        yaml:"cidrBlocks"`
	LifecycleState LifecycleState `json:"lifecycleState"    yaml:"lifecycleState"`
	RawState       string         `json:"rawLifecycleState" yaml:"rawLifecycleState"`
}

// Subnet belongs to exactly one VCN.
type Subnet struct {
	ID                 string         `json:"id"                 yaml:"id"`
	DisplayName        string         `json:"displayName"        yaml:"displayName"`
	VCNID              string         `json:"vcnId"              yaml:"vcnId"`
	CIDRBlock          string         `json:"cidrBlock"          yaml:"cidrBlock"`
	Public             bool           `json:"public"             yaml:"public"`
	AvailabilityDomain string         `json:"availabilityDomain" yaml:"availabilityDomain"`
	LifecycleState     LifecycleState `json:"lifecycleState"     yaml:"lifecycleState"`
	RawState           string         `json:"rawLifecycleState"  yaml:"rawLifecycleState"`
}

// NSG is a network security group.
type NSG struct {
	ID             string         `json:"id"                yaml:"id"`
	DisplayName    string         `json:"displayName"       yaml:"displayName"`
	VCNID          string         `json:"vcnId"             yaml:"vcnId"`
	LifecycleState LifecycleState `json:"lifecycleState"    yaml:"lifecycleState"`
	RawState       string         `json:"rawLifecycleState" yaml:"rawLifecycleState"`
}

// SecurityRule is a single NSG rule. PortMin/PortMax are zero when the rule has no port range.
type SecurityRule struct {
	ID          string `json:"id"          yaml:"id"`
	Direction   string `json:"direction"   yaml:"direction"`
	Protocol    string `json:"protocol"    yaml:"protocol"`
	Source      string `json:"source"      yaml:"source"`
	SourceType      string `json:"sourceType"      yaml:"sourceType"`
	Destination     string `json:"destination"     yaml:"destination"`
	DestinationType string `json:"destinationType" yaml:"destinationType"`
	Stateless       bool   `json:"isStateless"     yaml:"isStateless"`
	Description     string `json:"description"     yaml:"description"`
	PortMin         int    `json:"portMin"         yaml:"portMin"`
	PortMax         int    `json:"portMax"         yaml:"portMax"`
}

// ComputeCluster is a remote direct memory access network group of instances.
type ComputeCluster struct {
	ID                 string         `json:"id"                 yaml:"id"`
	DisplayName        string         `json:"displayName"        yaml:"displayName"`
	AvailabilityDomain string         `json:"availabilityDomain" yaml:"availabilityDomain"`
	LifecycleState     LifecycleState `json:"lifecycleState"     yaml:"lifecycleState"`
	RawState           string         `json:"rawLifecycleState"  yaml:"rawLifecycleState"`
	TimeCreated        *time.Time     `json:"timeCreated"        yaml:"timeCreated"`
}

// GPUMemoryFabric is a GPU memory interconnect domain.
type GPUMemoryFabric struct {
	ID                 string         `json:"id"                            yaml:"id"`
	DisplayName        string         `json:"displayName"                   yaml:"displayName"`
	LifecycleState     LifecycleState `json:"lifecycleState"                yaml:"lifecycleState"`
	RawState           string         `json:"rawLifecycleState"             yaml:"rawLifecycleState"`
	FabricHealth       string         `json:"fabricHealth"                  yaml:"fabricHealth"`
	HPCIslandID        string         `json:"computeHpcIslandId"            yaml:"computeHpcIslandId"`
	NetworkBlockID     string         `json:"computeNetworkBlockId"         yaml:"computeNetworkBlockId"`
	LocalBlockID       string         `json:"computeLocalBlockId,omitempty" yaml:"computeLocalBlockId,omitempty"`
	HealthyHostCount   int64          `json:"healthyHostCount"              yaml:"healthyHostCount"`
	TotalHostCount     int64          `json:"totalHostCount"                yaml:"totalHostCount"`
	AvailableHostCount int64          `json:"availableHostCount"            yaml:"availableHostCount"`
	AvailabilityDomain string         `json:"availabilityDomain"            yaml:"availabilityDomain"`
	TimeCreated        *time.Time     `json:"timeCreated,omitempty"         yaml:"timeCreated,omitempty"`
}

// GPUMemoryCluster is a set of instances sharing a GPU memory fabric.
type GPUMemoryCluster struct {
	ID                      string         `json:"id"                      yaml:"id"`
	DisplayName             string         `json:"displayName"             yaml:"displayName"`
	LifecycleState          LifecycleState `json:"lifecycleState"          yaml:"lifecycleState"`
	RawState                string         `json:"rawLifecycleState"       yaml:"rawLifecycleState"`
	ComputeClusterID        string         `json:"computeClusterId"        yaml:"computeClusterId"`
	GPUMemoryFabricID       string         `json:"gpuMemoryFabricId"       yaml:"gpuMemoryFabricId"`
	InstanceConfigurationID string         `json:"instanceConfigurationId" yaml:"instanceConfigurationId"`
	Size                    int64          `json:"size"                    yaml:"size"`
	AvailabilityDomain      string         `json:"availabilityDomain"      yaml:"availabilityDomain"`
	TimeCreated             *time.Time     `json:"timeCreated,omitempty"   yaml:"timeCreated,omitempty"`
}

// Announcement is a console announcement summary.
type Announcement struct {
	ID               string     `json:"id"                    yaml:"id"`
	ReferenceTicket  string     `json:"referenceTicketNumber" yaml:"referenceTicketNumber"`
	Summary          string     `json:"summary"               yaml:"summary"`
	AnnouncementType string     `json:"announcementType"      yaml:"announcementType"`
	LifecycleState   string     `json:"lifecycleState"        yaml:"lifecycleState"`
	Services         []string   `json:"services"              yaml:"services"`
	AffectedRegions  []string   `json:"affectedRegions"       yaml:"affectedRegions"`
	TimeOneValue     *time.Time `json:"timeOneValue"          yaml:"timeOneValue"`
	TimeCreated      *time.Time `json:"timeCreated"           yaml:"timeCreated"`
}

// AnnouncementDetail extends an Announcement with its long-form text and affected resources.
type AnnouncementDetail struct {
	Announcement `yaml:",inline"`

	Description           string             `json:"description"           yaml:"description"`
	AdditionalInformation string             `json:"additionalInformation" yaml:"additionalInformation"`
	AffectedResources     []AffectedResource `json:"affectedResources"     yaml:"affectedResources"`
}

// AffectedResource names one resource an announcement applies to.
type AffectedResource struct {
	ResourceID   string `json:"resourceId"   yaml:"resourceId"`
	ResourceName string `json:"resourceName" yaml:"resourceName"`
	Region       string `json:"region"       yaml:"region"`
}

// Instance is a compute instance.
type Instance struct {
	ID                 string         `json:"id"                 yaml:"id"`
	DisplayName        string         `json:"displayName"        yaml:"displayName"`
	Shape              string         `json:"shape"              yaml:"shape"`
	AvailabilityDomain string         `json:"availabilityDomain" yaml:"availabilityDomain"`
	FaultDomain        string         `json:"faultDomain"        yaml:"faultDomain"`
	CompartmentID      string         `json:"compartmentId"      yaml:"compartmentId"`
	ImageID            string         `json:"imageId"            yaml:"imageId"`
	LifecycleState     LifecycleState `json:"lifecycleState"     yaml:"lifecycleState"`
	RawState           string         `json:"rawLifecycleState"  yaml:"rawLifecycleState"`
}

// BootVolume is the boot volume attached to an instance.
type BootVolume struct {
	ID             string         `json:"id"             yaml:"id"`
	DisplayName    string         `json:"displayName"    yaml:"displayName"`
	SizeInGBs      int64          `json:"sizeInGBs"      yaml:"sizeInGBs"`
	VPUsPerGB      int64          `json:"vpusPerGB"      yaml:"vpusPerGB"`
	ImageID        string         `json:"imageId"        yaml:"imageId"`
	LifecycleState LifecycleState `json:"lifecycleState" yaml:"lifecycleState"`
}

// ImageShapeCompatibility records that an image may be launched on a shape.
type ImageShapeCompatibility struct {
	ImageID string `json:"imageId" yaml:"imageId"`
	Shape   string `json:"shape"   yaml:"shape"`
}

// OKECluster is a Container Engine for Kubernetes cluster.
type OKECluster struct {
	ID                string         `json:"id"                yaml:"id"`
	Name              string         `json:"name"              yaml:"name"`
	KubernetesVersion string         `json:"kubernetesVersion" yaml:"kubernetesVersion"`
	VCNID             string         `json:"vcnId"             yaml:"vcnId"`
	LifecycleState    LifecycleState `json:"lifecycleState"    yaml:"lifecycleState"`
	RawState          string         `json:"rawLifecycleState" yaml:"rawLifecycleState"`
}

// Policy is an IAM policy with its statements.
type Policy struct {
	ID            string   `json:"id"            yaml:"id"`
	Name          string   `json:"name"          yaml:"name"`
	CompartmentID string   `json:"compartmentId" yaml:"compartmentId"`
	Statements    []string `json:"statements"    yaml:"statements"`
}

// Group is an IAM group. Domain is set for groups of an identity domain.
type Group struct {
	ID     string `json:"id"               yaml:"id"`
	Name   string `json:"name"             yaml:"name"`
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// User is an IAM user of the default (legacy) identity store.
type User struct {
	ID    string `json:"id"    yaml:"id"`
	Name  string `json:"name"  yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// IdentityDomain is an identity domain of the tenancy. URL is the domain's own endpoint.
type IdentityDomain struct {
	ID             string         `json:"id"                yaml:"id"`
	DisplayName    string         `json:"displayName"       yaml:"displayName"`
	URL            string         `json:"url"               yaml:"url"`
	Type           string         `json:"type"              yaml:"type"`
	LifecycleState LifecycleState `json:"lifecycleState"    yaml:"lifecycleState"`
	RawState       string         `json:"rawLifecycleState" yaml:"rawLifecycleState"`
}

// DirectoryUser is a user of the default identity store or of an identity domain.
type DirectoryUser struct {
	ID          string     `json:"id"          yaml:"id"`
	UserName    string     `json:"userName"    yaml:"userName"`
	DisplayName string     `json:"displayName" yaml:"displayName"`
	Email       string     `json:"email"       yaml:"email"`
	Active      bool       `json:"active"      yaml:"active"`
	TimeCreated *time.Time `json:"timeCreated" yaml:"timeCreated"`
}
